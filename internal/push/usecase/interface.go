package usecase

import (
	"context"

	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/pkg/fcm"
)

// PushEvent names the callbacks a push transport emits
type PushEvent string

const (
	EventRegistered           PushEvent = "registration"
	EventRegistrationError    PushEvent = "registrationError"
	EventNotificationReceived PushEvent = "pushNotificationReceived"
	EventNotificationTapped   PushEvent = "pushNotificationActionPerformed"
)

// PushMessage is the argument of a transport callback. Only the fields
// relevant to the event are set.
type PushMessage struct {
	Token string
	Err   error
	Data  map[string]string
}

// ListenerHandle removes one installed listener. Remove must be safe to call more than once.
type ListenerHandle interface {
	Remove()
}

// PushTransport is the platform push service (APNs/FCM bridge on devices).
// Callbacks may fire on any goroutine, including synchronously from inside Register,
// but never from inside AddListener.
type PushTransport interface {
	Platform() domain.Platform
	RequestPermission(ctx context.Context) (domain.PermissionStatus, error)
	// Register starts registration; the token or error arrives through listeners
	Register(ctx context.Context) error
	AddListener(event PushEvent, fn func(PushMessage)) ListenerHandle
}

// Navigator is the host that performs the transition to a destination
type Navigator interface {
	Navigate(ctx context.Context, dest domain.Destination) error
}

// TokenPersister turns registration events into durable writes
type TokenPersister interface {
	Persist(ctx context.Context, userID, token string, platform domain.Platform) <-chan Outcome
	Remove(ctx context.Context, userID, token string) error
}

// TapHandler reacts to a tapped notification
type TapHandler interface {
	HandleTap(ctx context.Context, userID string, data map[string]string) domain.Destination
}

// PushSender delivers a notification to device tokens and reports the
// tokens that the transport rejected permanently
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}
