package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/internal/push/repository"
	"karmaterra-backend/pkg/fcm"
)

var ErrInvalidDispatch = errors.New("user_id and title are required")

// SendRequest describes one notification to fan out to a user's devices
type SendRequest struct {
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Link     string `json:"link"`
	ImageURL string `json:"image_url,omitempty"`
}

// Dispatcher records a notification and sends it to every device token of the user.
// It only reads the token store, except for removing tokens the transport rejected.
type Dispatcher struct {
	tokens        repository.TokenRepository
	notifications repository.NotificationRepository
	sender        PushSender
}

// NewDispatcher creates a dispatcher; sender may be nil when push is disabled
func NewDispatcher(tokens repository.TokenRepository, notifications repository.NotificationRepository, sender PushSender) *Dispatcher {
	return &Dispatcher{tokens: tokens, notifications: notifications, sender: sender}
}

// Send stores the notification and pushes it. The stored row is returned even when
// the push itself could not be delivered.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (*domain.Notification, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Title) == "" {
		return nil, ErrInvalidDispatch
	}

	n := &domain.Notification{
		UserID: req.UserID,
		Title:  req.Title,
		Body:   req.Body,
		Link:   strings.TrimSpace(req.Link),
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	if d.sender == nil {
		log.Printf("[Dispatch] Push disabled, stored notification %s only", n.ID)
		return n, nil
	}

	tokens, err := d.tokens.FindByUserID(ctx, req.UserID)
	if err != nil {
		return n, fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		log.Printf("[Dispatch] No device tokens for user %s, skipping push", req.UserID)
		return n, nil
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	data := map[string]string{domain.DataKeyNotificationID: n.ID}
	if n.Link != "" {
		data[domain.DataKeyLink] = n.Link
	}

	invalid, err := d.sender.SendToDevices(ctx, tokenStrings, fcm.NotificationData{
		Title:    n.Title,
		Body:     n.Body,
		ImageURL: req.ImageURL,
		Data:     data,
	})
	if err != nil {
		log.Printf("[Dispatch] Error sending notification %s: %v", n.ID, err)
	} else {
		log.Printf("[Dispatch] Sent notification %s to %d devices", n.ID, len(tokenStrings)-len(invalid))
	}

	// Cleanup rejected tokens
	for _, token := range invalid {
		if err := d.tokens.DeleteToken(ctx, token); err != nil {
			log.Printf("[Dispatch] Failed to remove rejected token %s: %v", domain.MaskToken(token), err)
		}
	}

	if err != nil {
		return n, fmt.Errorf("send push: %w", err)
	}
	return n, nil
}
