package platform

import (
	"context"
	"strings"
	"sync"
	"testing"

	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/internal/push/usecase"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestRegisterReusesToken(t *testing.T) {
	l := NewLoopback(domain.PlatformAndroid, domain.PermissionGranted)
	rec := &recorder{}
	l.AddListener(usecase.EventRegistered, func(m usecase.PushMessage) { rec.add(m.Token) })

	for i := 0; i < 2; i++ {
		if err := l.Register(context.Background()); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	l.Wait()

	got := rec.list()
	if len(got) != 2 || got[0] == "" || got[0] != got[1] || got[0] != l.Token() {
		t.Errorf("tokens = %v, install token %q", got, l.Token())
	}
}

func TestRegisterDenied(t *testing.T) {
	l := NewLoopback(domain.PlatformIOS, domain.PermissionDenied)
	if err := l.Register(context.Background()); err == nil {
		t.Error("want error when permission is denied")
	}
}

func TestRemovedListenerGetsNothing(t *testing.T) {
	l := NewLoopback(domain.PlatformAndroid, domain.PermissionGranted)
	l.Synchronous = true
	rec := &recorder{}
	h := l.AddListener(usecase.EventRegistered, func(m usecase.PushMessage) { rec.add(m.Token) })
	h.Remove()
	h.Remove()

	_ = l.Register(context.Background())
	if got := rec.list(); len(got) != 0 {
		t.Errorf("events = %v", got)
	}
	if n := l.ListenerCount(); n != 0 {
		t.Errorf("listeners = %d", n)
	}
}

func TestReadTaps(t *testing.T) {
	l := NewLoopback(domain.PlatformAndroid, domain.PermissionGranted)
	rec := &recorder{}
	l.AddListener(usecase.EventNotificationTapped, func(m usecase.PushMessage) { rec.add("tap " + m.Data["link"]) })
	l.AddListener(usecase.EventNotificationReceived, func(m usecase.PushMessage) { rec.add("recv " + m.Data["link"]) })

	input := strings.Join([]string{
		`{"link":"/profile","notificationId":"n-1"}`,
		``,
		`not json`,
		`recv {"link":"/blogs/2"}`,
	}, "\n")
	if err := l.ReadTaps(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("ReadTaps: %v", err)
	}

	got := rec.list()
	want := []string{"tap /profile", "recv /blogs/2"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSessionEndToEnd(t *testing.T) {
	l := NewLoopback(domain.PlatformAndroid, domain.PermissionPrompt)
	l.Synchronous = true
	persisted := make(chan string, 1)
	session := usecase.NewRegistrationSession(l, persisterFunc(func(userID, token string) { persisted <- userID + "/" + token }), nil)

	if err := session.Start(context.Background(), "user-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := <-persisted; got != "user-1/"+l.Token() {
		t.Errorf("persisted %q", got)
	}
	if n := l.ListenerCount(); n != 4 {
		t.Errorf("listeners = %d, want 4", n)
	}
	session.Teardown()
	if n := l.ListenerCount(); n != 0 {
		t.Errorf("listeners after teardown = %d", n)
	}
}

type persisterFunc func(userID, token string)

func (f persisterFunc) Persist(ctx context.Context, userID, token string, platform domain.Platform) <-chan usecase.Outcome {
	f(userID, token)
	ch := make(chan usecase.Outcome, 1)
	ch <- usecase.OutcomePersisted
	return ch
}

func (f persisterFunc) Remove(ctx context.Context, userID, token string) error { return nil }
