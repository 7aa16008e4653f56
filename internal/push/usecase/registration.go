package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"

	"karmaterra-backend/internal/push/domain"
)

// SessionSnapshot is a point-in-time copy of the registration session state
type SessionSnapshot struct {
	Status            domain.RegistrationStatus
	ActiveUserID      string
	ListenersAttached bool
	Token             string
}

// RegistrationSession owns the push registration handshake for this process.
//
// Every Start that attaches listeners bumps a generation counter. Callbacks carry the
// generation they were installed under and are ignored once it is stale, so a token that
// arrives after a user switch is never attributed to the previous user.
type RegistrationSession struct {
	transport PushTransport
	persister TokenPersister
	taps      TapHandler

	mu                sync.Mutex
	status            domain.RegistrationStatus
	activeUserID      string
	listenersAttached bool
	handles           []ListenerHandle
	generation        uint64
	token             string
}

// NewRegistrationSession creates an idle session. taps may be nil.
func NewRegistrationSession(transport PushTransport, persister TokenPersister, taps TapHandler) *RegistrationSession {
	return &RegistrationSession{
		transport: transport,
		persister: persister,
		taps:      taps,
		status:    domain.StatusIdle,
	}
}

// Snapshot returns the current state
func (s *RegistrationSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionSnapshot{
		Status:            s.status,
		ActiveUserID:      s.activeUserID,
		ListenersAttached: s.listenersAttached,
		Token:             s.token,
	}
}

// Status returns the current registration status
func (s *RegistrationSession) Status() domain.RegistrationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start runs the registration handshake for userID (empty for an anonymous session).
// It is a no-op on non-native platforms and when the same user already has an attempt
// in progress or completed. A different user's session is torn down first.
// Permission denial is not an error; it leaves the session Failed.
func (s *RegistrationSession) Start(ctx context.Context, userID string) error {
	platform := s.transport.Platform()
	if !platform.IsNative() {
		log.Printf("[Push] Platform %s has no native push, skipping registration", platform)
		return nil
	}

	s.mu.Lock()
	if s.listenersAttached && s.activeUserID == userID {
		switch s.status {
		case domain.StatusAwaitingPermission, domain.StatusRegistering, domain.StatusRegistered:
			s.mu.Unlock()
			return nil
		}
	}
	if s.listenersAttached {
		log.Printf("[Push] Switching session from user %q to %q", s.activeUserID, userID)
		s.teardownLocked()
	}

	s.generation++
	gen := s.generation
	s.activeUserID = userID
	s.token = ""
	// Listeners go in before the permission request: the platform may answer
	// Register synchronously.
	s.attachLocked(gen)
	s.status = domain.StatusAwaitingPermission
	s.mu.Unlock()

	permission, err := s.transport.RequestPermission(ctx)
	if err != nil {
		s.fail(gen, "permission request failed: %v", err)
		return fmt.Errorf("request push permission: %w", err)
	}

	switch permission {
	case domain.PermissionGranted, domain.PermissionPrompt:
	default:
		s.fail(gen, "permission %s", permission)
		return nil
	}

	if !s.advance(gen, domain.StatusAwaitingPermission, domain.StatusRegistering) {
		// Superseded, torn down, or the platform already answered.
		return nil
	}

	if err := s.transport.Register(ctx); err != nil {
		s.fail(gen, "register call failed: %v", err)
		return fmt.Errorf("register for push: %w", err)
	}
	return nil
}

// Teardown removes all listeners and resets the session to Idle. Safe to call repeatedly.
func (s *RegistrationSession) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

// Logout tears the session down and deletes the current (user, token) pair from the store
func (s *RegistrationSession) Logout(ctx context.Context) error {
	s.mu.Lock()
	userID, token := s.activeUserID, s.token
	s.teardownLocked()
	s.mu.Unlock()

	if userID == "" || token == "" || s.persister == nil {
		return nil
	}
	if err := s.persister.Remove(ctx, userID, token); err != nil {
		log.Printf("[Push] Failed to delete token %s for user %s on logout: %v", domain.MaskToken(token), userID, err)
		return err
	}
	return nil
}

func (s *RegistrationSession) teardownLocked() {
	for _, h := range s.handles {
		h.Remove()
	}
	s.handles = nil
	s.listenersAttached = false
	s.status = domain.StatusIdle
	s.activeUserID = ""
	s.token = ""
	// invalidate callbacks that are already in flight
	s.generation++
}

func (s *RegistrationSession) attachLocked(gen uint64) {
	s.handles = []ListenerHandle{
		s.transport.AddListener(EventRegistered, func(m PushMessage) { s.onRegistered(gen, m.Token) }),
		s.transport.AddListener(EventRegistrationError, func(m PushMessage) { s.onRegistrationError(gen, m.Err) }),
		s.transport.AddListener(EventNotificationReceived, func(m PushMessage) { s.onReceived(gen, m.Data) }),
		s.transport.AddListener(EventNotificationTapped, func(m PushMessage) { s.onTapped(gen, m.Data) }),
	}
	s.listenersAttached = true
}

// advance moves from one status to another if gen is still current
func (s *RegistrationSession) advance(gen uint64, from, to domain.RegistrationStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.status != from {
		return false
	}
	s.status = to
	return true
}

// fail moves an in-progress attempt to Failed. Registered and Failed are left alone.
func (s *RegistrationSession) fail(gen uint64, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	switch s.status {
	case domain.StatusAwaitingPermission, domain.StatusRegistering:
	default:
		log.Printf("[Push] Ignoring failure in status %s: %s", s.status, fmt.Sprintf(format, args...))
		return
	}
	s.status = domain.StatusFailed
	log.Printf("[Push] Registration failed for user %q: %s", s.activeUserID, fmt.Sprintf(format, args...))
}

func (s *RegistrationSession) onRegistered(gen uint64, token string) {
	s.mu.Lock()
	if gen != s.generation || !s.listenersAttached {
		s.mu.Unlock()
		log.Printf("[Push] Ignoring token %s from a stale session", domain.MaskToken(token))
		return
	}
	switch s.status {
	case domain.StatusAwaitingPermission, domain.StatusRegistering, domain.StatusRegistered:
	default:
		// Failed stays Failed until the next Start
		status := s.status
		s.mu.Unlock()
		log.Printf("[Push] Ignoring token %s in status %s", domain.MaskToken(token), status)
		return
	}
	s.status = domain.StatusRegistered
	s.token = token
	userID := s.activeUserID
	s.mu.Unlock()

	log.Printf("[Push] Registered token %s for user %q", domain.MaskToken(token), userID)
	if s.persister != nil {
		// The coordinator logs its own outcome; the channel is buffered.
		s.persister.Persist(context.Background(), userID, token, s.transport.Platform())
	}
}

func (s *RegistrationSession) onRegistrationError(gen uint64, err error) {
	s.fail(gen, "platform registration error: %v", err)
}

func (s *RegistrationSession) onReceived(gen uint64, data map[string]string) {
	s.mu.Lock()
	current := gen == s.generation
	s.mu.Unlock()
	if current {
		log.Printf("[Push] Notification received in foreground (id=%q)", data[domain.DataKeyNotificationID])
	}
}

func (s *RegistrationSession) onTapped(gen uint64, data map[string]string) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	userID := s.activeUserID
	s.mu.Unlock()

	if s.taps != nil {
		s.taps.HandleTap(context.Background(), userID, data)
	}
}
