package usecase

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/internal/push/repository"
)

// Outcome is the result of one persistence sequence
type Outcome int

const (
	// OutcomePersisted means one upsert attempt succeeded.
	OutcomePersisted Outcome = iota + 1
	// OutcomeExhausted means every attempt failed; the device stays registered
	// with the platform but cannot be reached until the next registration.
	OutcomeExhausted
	// OutcomeDropped means there was no user to attribute the token to.
	OutcomeDropped
	// OutcomeSuperseded means a newer event for the same key restarted the sequence.
	OutcomeSuperseded
)

func (o Outcome) String() string {
	switch o {
	case OutcomePersisted:
		return "persisted"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeDropped:
		return "dropped"
	case OutcomeSuperseded:
		return "superseded"
	}
	return "unknown"
}

const (
	// DefaultMaxAttempts is also the upper bound on attempts per sequence
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = time.Second
)

type persistKey struct {
	userID string
	token  string
}

type persistTask struct {
	cancel   context.CancelFunc
	finished chan struct{}
}

// TokenCoordinator writes registration tokens to the TokenStore with bounded retry.
// Retries wait on timers in a background goroutine, so Persist never blocks the caller.
// At most one sequence runs per (userID, token); a new event for a busy key cancels
// the old sequence and starts after it has exited.
type TokenCoordinator struct {
	store       repository.TokenStore
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time

	mu       sync.Mutex
	inflight map[persistKey]*persistTask
	wg       sync.WaitGroup
}

// NewTokenCoordinator creates a coordinator; out-of-range values fall back to 3 attempts / 1s
func NewTokenCoordinator(store repository.TokenStore, maxAttempts int, backoff time.Duration) *TokenCoordinator {
	if maxAttempts <= 0 || maxAttempts > DefaultMaxAttempts {
		maxAttempts = DefaultMaxAttempts
	}
	if backoff < 0 {
		backoff = DefaultRetryBackoff
	}
	return &TokenCoordinator{
		store:       store,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		now:         time.Now,
		inflight:    make(map[persistKey]*persistTask),
	}
}

// Persist schedules the write of (userID, token). The returned channel receives exactly one Outcome.
// The sequence is detached from ctx cancellation so that logout does not abort a write in progress.
func (c *TokenCoordinator) Persist(ctx context.Context, userID, token string, platform domain.Platform) <-chan Outcome {
	result := make(chan Outcome, 1)

	if strings.TrimSpace(userID) == "" {
		log.Printf("[PushToken] No user for token %s yet, dropping", domain.MaskToken(token))
		result <- OutcomeDropped
		return result
	}
	if strings.TrimSpace(token) == "" {
		log.Printf("[PushToken] Empty token for user %s, dropping", userID)
		result <- OutcomeDropped
		return result
	}

	key := persistKey{userID: userID, token: token}
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	task := &persistTask{cancel: cancel, finished: make(chan struct{})}

	c.mu.Lock()
	prev := c.inflight[key]
	if prev != nil {
		log.Printf("[PushToken] Restarting in-flight sequence for user %s token %s", userID, domain.MaskToken(token))
		prev.cancel()
	}
	c.inflight[key] = task
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(taskCtx, key, platform, task, prev, result)
	return result
}

// Remove deletes the (userID, token) row, used on logout
func (c *TokenCoordinator) Remove(ctx context.Context, userID, token string) error {
	if userID == "" || token == "" {
		return nil
	}
	return c.store.Delete(ctx, userID, token)
}

// Wait blocks until every scheduled sequence has finished
func (c *TokenCoordinator) Wait() {
	c.wg.Wait()
}

func (c *TokenCoordinator) run(ctx context.Context, key persistKey, platform domain.Platform, task, prev *persistTask, result chan<- Outcome) {
	defer c.wg.Done()
	defer close(task.finished)
	defer task.cancel()

	if prev != nil {
		<-prev.finished
	}

	outcome := c.attempt(ctx, key, platform)

	c.mu.Lock()
	if c.inflight[key] == task {
		delete(c.inflight, key)
	}
	c.mu.Unlock()

	result <- outcome
}

func (c *TokenCoordinator) attempt(ctx context.Context, key persistKey, platform domain.Platform) Outcome {
	masked := domain.MaskToken(key.token)
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return OutcomeSuperseded
		}

		err := c.store.Upsert(ctx, key.userID, key.token, platform, c.now())
		if err == nil {
			log.Printf("[PushToken] Saved token %s for user %s (attempt %d)", masked, key.userID, attempt)
			return OutcomePersisted
		}
		if ctx.Err() != nil {
			return OutcomeSuperseded
		}

		log.Printf("[PushToken] Attempt %d/%d for user %s failed (%s): %v",
			attempt, c.maxAttempts, key.userID, repository.KindOf(err), err)
		if repository.IsFatal(err) {
			break
		}
		if attempt == c.maxAttempts {
			break
		}

		timer := time.NewTimer(c.backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return OutcomeSuperseded
		}
	}

	log.Printf("[PushToken] Giving up on token %s for user %s until next registration", masked, key.userID)
	return OutcomeExhausted
}
