package dto

import (
	"time"

	"karmaterra-backend/internal/push/domain"
)

type RegisterTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required"`
}

// TokenResponse is a device token as shown to its owner; the token itself is masked
type TokenResponse struct {
	ID         string          `json:"id"`
	Token      string          `json:"token"`
	Platform   domain.Platform `json:"platform"`
	LastUsedAt time.Time       `json:"last_used_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

func NewTokenResponse(t domain.DeviceToken) TokenResponse {
	return TokenResponse{
		ID:         t.ID,
		Token:      domain.MaskToken(t.Token),
		Platform:   t.Platform,
		LastUsedAt: t.LastUsedAt,
		CreatedAt:  t.CreatedAt,
	}
}

type RouteRequest struct {
	Link           string `json:"link"`
	NotificationID string `json:"notificationId"`
}

type SendNotificationRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Title    string `json:"title" binding:"required"`
	Body     string `json:"body"`
	Link     string `json:"link"`
	ImageURL string `json:"image_url"`
}

type NotificationListResponse struct {
	Notifications []*domain.Notification `json:"notifications"`
	Total         int64                  `json:"total"`
}
