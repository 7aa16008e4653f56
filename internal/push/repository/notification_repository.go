package repository

import (
	"context"
	"time"

	"karmaterra-backend/internal/push/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReceiptStore is the write contract the read-receipt updater depends on
type ReceiptStore interface {
	// MarkRead flags the user's notification as read; ErrNotFound when it is not theirs
	MarkRead(ctx context.Context, userID, notificationID string, at time.Time) error
}

// NotificationRepository defines notification history operations
type NotificationRepository interface {
	ReceiptStore
	Create(ctx context.Context, n *domain.Notification) error
	// ListByUserID returns a page of notifications, newest first, and the total count
	ListByUserID(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, int64, error)
}

type gormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GORM-based NotificationRepository
func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	return classify("create notification", r.db.WithContext(ctx).Create(n).Error)
}

func (r *gormNotificationRepository) MarkRead(ctx context.Context, userID, notificationID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		})
	if res.Error != nil {
		return classify("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormNotificationRepository) ListByUserID(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, int64, error) {
	var (
		items []*domain.Notification
		total int64
	)

	query := r.db.WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, classify("count notifications", err)
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	if err != nil {
		return nil, 0, classify("find notifications", err)
	}
	return items, total, nil
}
