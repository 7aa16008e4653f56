package platform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"sync"

	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/internal/push/usecase"

	"github.com/google/uuid"
)

var _ usecase.PushTransport = (*Loopback)(nil)

// Loopback is an in-process push transport. It answers the permission prompt with a
// configured value, issues one uuid token per install and lets the caller inject
// received and tapped notifications.
type Loopback struct {
	platform   domain.Platform
	permission domain.PermissionStatus
	// Synchronous makes Register deliver the token before it returns
	Synchronous bool

	mu        sync.Mutex
	token     string
	nextID    int
	listeners map[int]listener
	wg        sync.WaitGroup
}

type listener struct {
	event usecase.PushEvent
	fn    func(usecase.PushMessage)
}

type handle struct {
	transport *Loopback
	id        int
	once      sync.Once
}

func (h *handle) Remove() {
	h.once.Do(func() {
		h.transport.mu.Lock()
		delete(h.transport.listeners, h.id)
		h.transport.mu.Unlock()
	})
}

func NewLoopback(platform domain.Platform, permission domain.PermissionStatus) *Loopback {
	return &Loopback{
		platform:   platform,
		permission: permission,
		listeners:  make(map[int]listener),
	}
}

func (l *Loopback) Platform() domain.Platform {
	return l.platform
}

func (l *Loopback) RequestPermission(ctx context.Context) (domain.PermissionStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	log.Printf("[Agent] Permission prompt answered: %s", l.permission)
	return l.permission, nil
}

// Register issues the install token, reusing it on later calls
func (l *Loopback) Register(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.permission == domain.PermissionDenied {
		return fmt.Errorf("push permission denied")
	}

	l.mu.Lock()
	if l.token == "" {
		l.token = uuid.New().String()
	}
	token := l.token
	l.mu.Unlock()

	msg := usecase.PushMessage{Token: token}
	if l.Synchronous {
		l.emit(usecase.EventRegistered, msg)
		return nil
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.emit(usecase.EventRegistered, msg)
	}()
	return nil
}

func (l *Loopback) AddListener(event usecase.PushEvent, fn func(usecase.PushMessage)) usecase.ListenerHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.listeners[l.nextID] = listener{event: event, fn: fn}
	return &handle{transport: l, id: l.nextID}
}

// Token returns the issued install token, empty before Register
func (l *Loopback) Token() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token
}

// Receive delivers a notification while the app is in the foreground
func (l *Loopback) Receive(data map[string]string) {
	l.emit(usecase.EventNotificationReceived, usecase.PushMessage{Data: data})
}

// Tap delivers a tapped notification
func (l *Loopback) Tap(data map[string]string) {
	l.emit(usecase.EventNotificationTapped, usecase.PushMessage{Data: data})
}

// Wait blocks until asynchronous callbacks have been delivered
func (l *Loopback) Wait() {
	l.wg.Wait()
}

// ListenerCount reports how many listeners are installed
func (l *Loopback) ListenerCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.listeners)
}

func (l *Loopback) emit(event usecase.PushEvent, msg usecase.PushMessage) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.listeners))
	for id, ln := range l.listeners {
		if ln.event == event {
			ids = append(ids, id)
		}
	}
	fns := make([]func(usecase.PushMessage), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, l.listeners[id].fn)
	}
	l.mu.Unlock()

	if len(fns) == 0 {
		log.Printf("[Agent] No listener for %s, event dropped", event)
		return
	}
	for _, fn := range fns {
		fn(msg)
	}
}

// ReadTaps reads one JSON object per line from r and delivers each as a tapped
// notification. Lines prefixed with "recv " are delivered as received instead.
// It returns when r is exhausted or ctx is cancelled.
func (l *Loopback) ReadTaps(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		deliver := l.Tap
		if rest, ok := strings.CutPrefix(line, "recv "); ok {
			deliver, line = l.Receive, rest
		}

		var data map[string]string
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			log.Printf("[Agent] Ignoring malformed payload %q: %v", line, err)
			continue
		}
		deliver(data)
	}
	return scanner.Err()
}
