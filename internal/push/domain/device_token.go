package domain

import (
	"strings"
	"time"
)

// Platform identifies the push transport family that issued a device token
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
)

// ParsePlatform normalizes a client-supplied platform name
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Valid()
}

func (p Platform) Valid() bool {
	switch p {
	case PlatformAndroid, PlatformIOS, PlatformWeb:
		return true
	}
	return false
}

// IsNative reports whether the platform has a native push registration flow.
// Web clients never attempt registration.
func (p Platform) IsNative() bool {
	return p == PlatformAndroid || p == PlatformIOS
}

// DeviceToken is one physical delivery endpoint owned by a user.
// The (user_id, token) pair is unique; re-registration refreshes LastUsedAt.
type DeviceToken struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"uniqueIndex:idx_device_tokens_user_token;not null"`
	Token      string    `json:"-" gorm:"uniqueIndex:idx_device_tokens_user_token;not null"` // Don't expose token in JSON
	Platform   Platform  `json:"platform" gorm:"not null"`
	LastUsedAt time.Time `json:"last_used_at" gorm:"index;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// MaskToken keeps the first few characters of a token for logs and API views
func MaskToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
