package usecase

import (
	"errors"
	"testing"
	"time"

	"karmaterra-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

func newTestAuth(t *testing.T, adminKey string) AuthUsecase {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret", JWTAccessExpiry: time.Minute}
	if adminKey != "" {
		hash, err := HashAdminKey(adminKey)
		if err != nil {
			t.Fatalf("hash admin key: %v", err)
		}
		cfg.AdminKeyHash = hash
	}
	return NewAuthUsecase(cfg)
}

func TestIssueAndValidateToken(t *testing.T) {
	auth := newTestAuth(t, "")

	token, err := auth.IssueToken("user-1")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	userID, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("userID = %q, want user-1", userID)
	}

	if _, err := auth.IssueToken(" "); !errors.Is(err, ErrMissingUser) {
		t.Errorf("IssueToken(blank) err = %v", err)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	auth := newTestAuth(t, "")
	other := NewAuthUsecase(&config.Config{JWTSecret: "other-secret"})
	foreign, _ := other.IssueToken("user-1")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	expiredToken, _ := expired.SignedString([]byte("test-secret"))

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{})
	noUserToken, _ := noUser.SignedString([]byte("test-secret"))

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong secret", token: foreign},
		{name: "expired", token: expiredToken},
		{name: "no user", token: noUserToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := auth.ValidateToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestValidateAdminKey(t *testing.T) {
	auth := newTestAuth(t, "s3cret")
	if !auth.ValidateAdminKey("s3cret") {
		t.Error("correct key rejected")
	}
	if auth.ValidateAdminKey("wrong") || auth.ValidateAdminKey("") {
		t.Error("wrong key accepted")
	}

	disabled := newTestAuth(t, "")
	if disabled.ValidateAdminKey("s3cret") {
		t.Error("admin key accepted without a configured hash")
	}
}
