package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"karmaterra-backend/internal/push/domain"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	_ TokenRepository        = (*BoltStore)(nil)
	_ NotificationRepository = (*BoltStore)(nil)
)

var (
	bucketDeviceTokens  = []byte("device_tokens")
	bucketNotifications = []byte("notifications")
)

// keySep separates user id and token in device_tokens keys so a user's tokens share a prefix.
const keySep = 0x00

// BoltStore is a BoltDB-backed token and notification store for single-node deployments.
// Every write runs in one Bolt transaction, which serialises writers and keeps the
// (user_id, token) pair unique by construction.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the Bolt file at path
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDeviceTokens); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketNotifications)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close closes underlying Bolt DB.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func tokenKey(userID, token string) []byte {
	key := make([]byte, 0, len(userID)+1+len(token))
	key = append(key, userID...)
	key = append(key, keySep)
	return append(key, token...)
}

func userPrefix(userID string) []byte {
	return append([]byte(userID), keySep)
}

func (s *BoltStore) Upsert(ctx context.Context, userID, token string, platform domain.Platform, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return classify("upsert device token", err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketDeviceTokens)
		key := tokenKey(userID, token)

		row := domain.DeviceToken{
			ID:        uuid.New().String(),
			UserID:    userID,
			Token:     token,
			CreatedAt: now,
		}
		if existing := bkt.Get(key); existing != nil {
			if err := json.Unmarshal(existing, &row); err != nil {
				return err
			}
		}
		row.Platform = platform
		row.LastUsedAt = now

		payload, err := marshalToken(row)
		if err != nil {
			return err
		}
		return bkt.Put(key, payload)
	})
	return classify("upsert device token", err)
}

func (s *BoltStore) Delete(ctx context.Context, userID, token string) error {
	if err := ctx.Err(); err != nil {
		return classify("delete device token", err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDeviceTokens).Delete(tokenKey(userID, token))
	})
	return classify("delete device token", err)
}

func (s *BoltStore) FindByUserID(ctx context.Context, userID string) ([]domain.DeviceToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("find device tokens", err)
	}
	var tokens []domain.DeviceToken
	prefix := userPrefix(userID)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDeviceTokens).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			row, err := unmarshalToken(k, v)
			if err != nil {
				return err
			}
			tokens = append(tokens, row)
		}
		return nil
	})
	if err != nil {
		return nil, classify("find device tokens", err)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].LastUsedAt.After(tokens[j].LastUsedAt)
	})
	return tokens, nil
}

func (s *BoltStore) DeleteToken(ctx context.Context, token string) error {
	_, err := s.deleteWhere(ctx, "delete token", func(row domain.DeviceToken) bool {
		return row.Token == token
	})
	return err
}

func (s *BoltStore) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := s.deleteWhere(ctx, "delete user tokens", func(row domain.DeviceToken) bool {
		return row.UserID == userID
	})
	return err
}

func (s *BoltStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	return s.deleteWhere(ctx, "delete stale tokens", func(row domain.DeviceToken) bool {
		return row.LastUsedAt.Before(before)
	})
}

func (s *BoltStore) deleteWhere(ctx context.Context, op string, match func(domain.DeviceToken) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, classify(op, err)
	}
	var removed int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketDeviceTokens)
		var doomed [][]byte
		err := bkt.ForEach(func(k, v []byte) error {
			row, err := unmarshalToken(k, v)
			if err != nil {
				return err
			}
			if match(row) {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range doomed {
			if err := bkt.Delete(k); err != nil {
				return err
			}
		}
		removed = int64(len(doomed))
		return nil
	})
	if err != nil {
		return 0, classify(op, err)
	}
	return removed, nil
}

// tokens are tagged json:"-" on the API model, so the stored record carries them explicitly
type storedToken struct {
	domain.DeviceToken
	RawToken string `json:"token"`
}

func marshalToken(row domain.DeviceToken) ([]byte, error) {
	return json.Marshal(storedToken{DeviceToken: row, RawToken: row.Token})
}

func unmarshalToken(key, payload []byte) (domain.DeviceToken, error) {
	var stored storedToken
	if err := json.Unmarshal(payload, &stored); err != nil {
		return domain.DeviceToken{}, err
	}
	row := stored.DeviceToken
	row.Token = stored.RawToken
	if row.Token == "" {
		if i := bytes.IndexByte(key, keySep); i >= 0 {
			row.Token = string(key[i+1:])
		}
	}
	return row, nil
}

func (s *BoltStore) Create(ctx context.Context, n *domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return classify("create notification", err)
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return NewStoreError(KindFatal, "create notification", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotifications).Put([]byte(n.ID), payload)
	})
	return classify("create notification", err)
}

func (s *BoltStore) MarkRead(ctx context.Context, userID, notificationID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return classify("mark notification read", err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketNotifications)
		v := bkt.Get([]byte(notificationID))
		if v == nil {
			return ErrNotFound
		}
		var n domain.Notification
		if err := json.Unmarshal(v, &n); err != nil {
			return err
		}
		if n.UserID != userID {
			return ErrNotFound
		}
		n.IsRead = true
		n.ReadAt = &at
		payload, err := json.Marshal(&n)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(n.ID), payload)
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return classify("mark notification read", err)
}

func (s *BoltStore) ListByUserID(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, classify("find notifications", err)
	}
	var matches []*domain.Notification
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNotifications).ForEach(func(_, v []byte) error {
			var n domain.Notification
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			if n.UserID != userID || (unreadOnly && n.IsRead) {
				return nil
			}
			copied := n
			matches = append(matches, &copied)
			return nil
		})
	})
	if err != nil {
		return nil, 0, classify("find notifications", err)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := int64(len(matches))
	if offset > len(matches) {
		offset = len(matches)
	}
	end := len(matches)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matches[offset:end], total, nil
}
