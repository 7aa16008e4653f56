package usecase

import (
	"context"
	"fmt"
	"log"

	"karmaterra-backend/internal/push/domain"
)

// ActionHandler turns a tap into navigation followed by a read receipt
type ActionHandler struct {
	router    *Router
	navigator Navigator
	receipts  *ReadReceiptUpdater
}

func NewActionHandler(router *Router, navigator Navigator, receipts *ReadReceiptUpdater) *ActionHandler {
	return &ActionHandler{router: router, navigator: navigator, receipts: receipts}
}

// HandleTap routes the payload, navigates, then marks the notification read.
// Navigation failures fall back to home; nothing here is returned as an error.
func (h *ActionHandler) HandleTap(ctx context.Context, userID string, data map[string]string) domain.Destination {
	action := domain.ActionFromData(data)
	dest := h.router.Route(action)

	if err := h.navigate(ctx, dest); err != nil {
		log.Printf("[PushRouter] Navigation to %s %q failed: %v", dest.Kind, dest.Target, err)
		if dest != h.router.Home() {
			dest = h.router.Home()
			if err := h.navigate(ctx, dest); err != nil {
				log.Printf("[PushRouter] Fallback navigation home failed: %v", err)
			}
		}
	}

	if action.NotificationID != "" {
		h.receipts.MarkRead(ctx, userID, action.NotificationID)
	}
	return dest
}

func (h *ActionHandler) navigate(ctx context.Context, dest domain.Destination) (err error) {
	if h.navigator == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("navigator panicked: %v", rec)
		}
	}()
	return h.navigator.Navigate(ctx, dest)
}
