package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/pkg/fcm"
)

// fakeTokenStore answers Upsert from a queue of errors; once the queue is empty every call succeeds.
type fakeTokenStore struct {
	mu        sync.Mutex
	errs      []error
	upserts   []upsertCall
	deletes   []upsertCall
	active    int
	maxActive int
	// block, when set, holds the first Upsert until it is closed or ctx is cancelled
	block chan struct{}
}

type upsertCall struct {
	userID string
	token  string
}

func (f *fakeTokenStore) Upsert(ctx context.Context, userID, token string, platform domain.Platform, now time.Time) error {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	first := len(f.upserts) == 0
	f.upserts = append(f.upserts, upsertCall{userID, token})
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	block := f.block
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if first && block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeTokenStore) Delete(ctx context.Context, userID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, upsertCall{userID, token})
	return nil
}

func (f *fakeTokenStore) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.upserts)
}

// fakeListener keeps its callback after removal so tests can deliver late events
type fakeListener struct {
	event   PushEvent
	fn      func(PushMessage)
	removed bool
	owner   *fakeTransport
}

func (l *fakeListener) Remove() {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	l.removed = true
}

type fakeTransport struct {
	platform    domain.Platform
	permission  domain.PermissionStatus
	permErr     error
	registerErr error
	// syncToken is emitted from inside Register when set
	syncToken string

	mu             sync.Mutex
	listeners      []*fakeListener
	permCalls      int
	registerCalls  int
	attachedAtPerm int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{platform: domain.PlatformAndroid, permission: domain.PermissionGranted}
}

func (f *fakeTransport) Platform() domain.Platform { return f.platform }

func (f *fakeTransport) RequestPermission(ctx context.Context) (domain.PermissionStatus, error) {
	f.mu.Lock()
	f.permCalls++
	f.attachedAtPerm = f.activeCountLocked()
	f.mu.Unlock()
	return f.permission, f.permErr
}

func (f *fakeTransport) Register(ctx context.Context) error {
	f.mu.Lock()
	f.registerCalls++
	f.mu.Unlock()
	if f.registerErr != nil {
		return f.registerErr
	}
	if f.syncToken != "" {
		f.emit(EventRegistered, PushMessage{Token: f.syncToken})
	}
	return nil
}

func (f *fakeTransport) AddListener(event PushEvent, fn func(PushMessage)) ListenerHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := &fakeListener{event: event, fn: fn, owner: f}
	f.listeners = append(f.listeners, l)
	return l
}

// emit delivers msg to every listener that is still installed for event
func (f *fakeTransport) emit(event PushEvent, msg PushMessage) {
	f.mu.Lock()
	var fns []func(PushMessage)
	for _, l := range f.listeners {
		if l.event == event && !l.removed {
			fns = append(fns, l.fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}

// latest returns the most recently added listener for event, removed or not
func (f *fakeTransport) latest(event PushEvent) *fakeListener {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.listeners) - 1; i >= 0; i-- {
		if f.listeners[i].event == event {
			return f.listeners[i]
		}
	}
	return nil
}

func (f *fakeTransport) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeCountLocked()
}

func (f *fakeTransport) activeCountLocked() int {
	n := 0
	for _, l := range f.listeners {
		if !l.removed {
			n++
		}
	}
	return n
}

type fakePersister struct {
	mu       sync.Mutex
	persists []upsertCall
	removes  []upsertCall
}

func (f *fakePersister) Persist(ctx context.Context, userID, token string, platform domain.Platform) <-chan Outcome {
	f.mu.Lock()
	f.persists = append(f.persists, upsertCall{userID, token})
	f.mu.Unlock()
	ch := make(chan Outcome, 1)
	ch <- OutcomePersisted
	return ch
}

func (f *fakePersister) Remove(ctx context.Context, userID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, upsertCall{userID, token})
	return nil
}

func (f *fakePersister) persisted() []upsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upsertCall(nil), f.persists...)
}

type fakeTapHandler struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeTapHandler) HandleTap(ctx context.Context, userID string, data map[string]string) domain.Destination {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
	return domain.HomeDestination("/")
}

type fakeNavigator struct {
	mu    sync.Mutex
	seen  []domain.Destination
	fail  map[domain.DestinationKind]error
	panic bool
}

func (f *fakeNavigator) Navigate(ctx context.Context, dest domain.Destination) error {
	f.mu.Lock()
	f.seen = append(f.seen, dest)
	f.mu.Unlock()
	if f.panic && dest.Kind != domain.DestinationHome {
		panic("renderer crashed")
	}
	return f.fail[dest.Kind]
}

type fakeReceiptStore struct {
	mu    sync.Mutex
	calls []upsertCall
	err   error
	panic bool
}

func (f *fakeReceiptStore) MarkRead(ctx context.Context, userID, notificationID string, at time.Time) error {
	f.mu.Lock()
	f.calls = append(f.calls, upsertCall{userID, notificationID})
	f.mu.Unlock()
	if f.panic {
		panic("store exploded")
	}
	return f.err
}

type fakeSender struct {
	mu      sync.Mutex
	tokens  []string
	data    fcm.NotificationData
	invalid []string
	err     error
}

func (f *fakeSender) SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append([]string(nil), tokens...)
	f.data = notification
	return f.invalid, f.err
}

func waitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}
	return 0
}
