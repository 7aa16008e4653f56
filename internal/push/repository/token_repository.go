package repository

import (
	"context"
	"errors"
	"time"

	"karmaterra-backend/internal/push/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenStore is the write contract the persistence coordinator depends on
type TokenStore interface {
	// Upsert creates the (userID, token) row or refreshes its platform and last-used time
	Upsert(ctx context.Context, userID, token string, platform domain.Platform, now time.Time) error
	// Delete removes the (userID, token) row; deleting a missing row is not an error
	Delete(ctx context.Context, userID, token string) error
}

// TokenRepository defines the full set of device token operations
type TokenRepository interface {
	TokenStore
	FindByUserID(ctx context.Context, userID string) ([]domain.DeviceToken, error)
	// DeleteToken removes a token for every owner (used when the transport rejects it)
	DeleteToken(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteStale removes tokens not refreshed since before and returns how many were removed
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// gormTokenRepository implements TokenRepository with GORM
type gormTokenRepository struct {
	db *gorm.DB
}

// NewGormTokenRepository creates a new GORM-based TokenRepository
func NewGormTokenRepository(db *gorm.DB) TokenRepository {
	return &gormTokenRepository{db: db}
}

// Upsert saves or refreshes a device token (atomic upsert on the (user_id, token) pair)
func (r *gormTokenRepository) Upsert(ctx context.Context, userID, token string, platform domain.Platform, now time.Time) error {
	row := &domain.DeviceToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		Token:      token,
		Platform:   platform,
		LastUsedAt: now,
		CreatedAt:  now,
	}

	// INSERT ... ON CONFLICT (user_id, token) DO UPDATE
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"platform", "last_used_at"}),
	}).Create(row).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// The row exists but the conflict target did not catch it; update it in place.
		return r.update(ctx, userID, token, platform, now)
	}
	return classify("upsert device token", err)
}

func (r *gormTokenRepository) update(ctx context.Context, userID, token string, platform domain.Platform, now time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.DeviceToken{}).
		Where("user_id = ? AND token = ?", userID, token).
		Updates(map[string]interface{}{
			"platform":     platform,
			"last_used_at": now,
		}).Error
	return classify("update device token", err)
}

func (r *gormTokenRepository) Delete(ctx context.Context, userID, token string) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&domain.DeviceToken{}).Error
	return classify("delete device token", err)
}

// FindByUserID returns all device tokens for a user, most recently used first
func (r *gormTokenRepository) FindByUserID(ctx context.Context, userID string) ([]domain.DeviceToken, error) {
	var tokens []domain.DeviceToken
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("last_used_at DESC").Find(&tokens).Error
	if err != nil {
		return nil, classify("find device tokens", err)
	}
	return tokens, nil
}

func (r *gormTokenRepository) DeleteToken(ctx context.Context, token string) error {
	err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&domain.DeviceToken{}).Error
	return classify("delete token", err)
}

func (r *gormTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.DeviceToken{}).Error
	return classify("delete user tokens", err)
}

func (r *gormTokenRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("last_used_at < ?", before).Delete(&domain.DeviceToken{})
	if res.Error != nil {
		return 0, classify("delete stale tokens", res.Error)
	}
	return res.RowsAffected, nil
}
