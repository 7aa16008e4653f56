package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/internal/push/repository"
)

func TestHandleTapNavigatesThenMarksRead(t *testing.T) {
	nav := &fakeNavigator{}
	receipts := &fakeReceiptStore{}
	h := NewActionHandler(newTestRouter(), nav, NewReadReceiptUpdater(receipts, time.Second))

	dest := h.HandleTap(context.Background(), "user-1", map[string]string{
		"link":           "/blogs/12",
		"notificationId": "n-1",
	})

	if want := domain.AppRouteDestination("/blogs/12"); dest != want {
		t.Errorf("dest = %+v, want %+v", dest, want)
	}
	if len(nav.seen) != 1 || nav.seen[0] != dest {
		t.Errorf("navigations = %v", nav.seen)
	}
	if len(receipts.calls) != 1 || receipts.calls[0] != (upsertCall{"user-1", "n-1"}) {
		t.Errorf("receipts = %v", receipts.calls)
	}
}

func TestHandleTapWithoutNotificationID(t *testing.T) {
	receipts := &fakeReceiptStore{}
	h := NewActionHandler(newTestRouter(), &fakeNavigator{}, NewReadReceiptUpdater(receipts, time.Second))

	h.HandleTap(context.Background(), "user-1", map[string]string{"link": "/profile"})

	if len(receipts.calls) != 0 {
		t.Errorf("receipts = %v, want none", receipts.calls)
	}
}

func TestHandleTapFallsBackHome(t *testing.T) {
	tests := []struct {
		name string
		nav  *fakeNavigator
	}{
		{name: "error", nav: &fakeNavigator{fail: map[domain.DestinationKind]error{domain.DestinationExternal: errors.New("no browser")}}},
		{name: "panic", nav: &fakeNavigator{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipts := &fakeReceiptStore{}
			h := NewActionHandler(newTestRouter(), tt.nav, NewReadReceiptUpdater(receipts, time.Second))

			dest := h.HandleTap(context.Background(), "user-1", map[string]string{
				"link":           "https://karmaterra.in/shop",
				"notificationId": "n-2",
			})

			if dest != domain.HomeDestination("/") {
				t.Errorf("dest = %+v, want home", dest)
			}
			if len(tt.nav.seen) != 2 || tt.nav.seen[1].Kind != domain.DestinationHome {
				t.Errorf("navigations = %v", tt.nav.seen)
			}
			if len(receipts.calls) != 1 {
				t.Errorf("receipt not recorded after fallback: %v", receipts.calls)
			}
		})
	}
}

func TestMarkReadSwallowsFailures(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeReceiptStore
	}{
		{name: "not found", store: &fakeReceiptStore{err: repository.ErrNotFound}},
		{name: "store error", store: &fakeReceiptStore{err: errors.New("database is down")}},
		{name: "panic", store: &fakeReceiptStore{panic: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewReadReceiptUpdater(tt.store, time.Second)
			u.MarkRead(context.Background(), "user-1", "n-1")
			if len(tt.store.calls) != 1 {
				t.Errorf("calls = %v", tt.store.calls)
			}
		})
	}
}

func TestMarkReadSkipsMissingIDs(t *testing.T) {
	store := &fakeReceiptStore{}
	u := NewReadReceiptUpdater(store, time.Second)

	u.MarkRead(context.Background(), "", "n-1")
	u.MarkRead(context.Background(), "user-1", " ")

	var nilUpdater *ReadReceiptUpdater
	nilUpdater.MarkRead(context.Background(), "user-1", "n-1")

	if len(store.calls) != 0 {
		t.Errorf("calls = %v, want none", store.calls)
	}
}
