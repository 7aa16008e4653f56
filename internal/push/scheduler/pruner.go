package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// StaleTokenStore is the part of the token repository the pruner needs
type StaleTokenStore interface {
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// TokenPruner removes device tokens that have not been refreshed for a while.
// Devices re-register on every login, so an old last_used_at means an abandoned install.
type TokenPruner struct {
	store    StaleTokenStore
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewTokenPruner creates a new pruner
func NewTokenPruner(store StaleTokenStore, maxAge, interval time.Duration) *TokenPruner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &TokenPruner{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the pruning loop
func (p *TokenPruner) Start() {
	if p.maxAge <= 0 {
		log.Println("[TokenPruner] push.stale_token_after not set, pruner disabled")
		close(p.done)
		return
	}

	log.Printf("[TokenPruner] Starting (max age: %s, interval: %s)", p.maxAge, p.interval)

	go func() {
		defer close(p.done)

		// Run immediately on start
		p.Prune(context.Background())

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.Prune(context.Background())
			case <-p.stopChan:
				log.Println("[TokenPruner] Pruner stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the pruner and waits for the loop to exit
func (p *TokenPruner) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	<-p.done
}

// Prune deletes every token last used before now - maxAge and returns how many went
func (p *TokenPruner) Prune(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.maxAge)
	n, err := p.store.DeleteStale(ctx, cutoff)
	if err != nil {
		log.Printf("[TokenPruner] Error deleting tokens older than %s: %v", cutoff.Format(time.RFC3339), err)
		return 0
	}
	if n > 0 {
		log.Printf("[TokenPruner] Removed %d stale device tokens", n)
	}
	return n
}
