package usecase

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"karmaterra-backend/internal/push/repository"
)

// ReadReceiptUpdater marks handled notifications as read. It never reports failure:
// a missed receipt is invisible to the user and must not undo navigation.
type ReadReceiptUpdater struct {
	store   repository.ReceiptStore
	timeout time.Duration
	now     func() time.Time
}

func NewReadReceiptUpdater(store repository.ReceiptStore, timeout time.Duration) *ReadReceiptUpdater {
	return &ReadReceiptUpdater{store: store, timeout: timeout, now: time.Now}
}

// MarkRead flags the notification as read for userID, logging and swallowing any error
func (u *ReadReceiptUpdater) MarkRead(ctx context.Context, userID, notificationID string) {
	if u == nil || u.store == nil {
		return
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(notificationID) == "" {
		return
	}

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[PushReceipt] Recovered while marking %s read: %v", notificationID, rec)
		}
	}()

	err := u.store.MarkRead(ctx, userID, notificationID, u.now())
	switch {
	case err == nil:
		log.Printf("[PushReceipt] Marked notification %s read for user %s", notificationID, userID)
	case errors.Is(err, repository.ErrNotFound):
		log.Printf("[PushReceipt] Notification %s not found for user %s", notificationID, userID)
	default:
		log.Printf("[PushReceipt] Failed to mark notification %s read: %v", notificationID, err)
	}
}
