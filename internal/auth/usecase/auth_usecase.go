package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"karmaterra-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingUser  = errors.New("user id is required")
)

// AuthUsecase issues and checks the bearer tokens used by devices and the admin key
type AuthUsecase interface {
	IssueToken(userID string) (string, error)
	ValidateToken(tokenString string) (string, error)
	ValidateAdminKey(key string) bool
}

// Claims carried in an access token
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type authUsecase struct {
	secret       []byte
	accessExpiry time.Duration
	adminKeyHash string
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(cfg *config.Config) AuthUsecase {
	expiry := cfg.JWTAccessExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &authUsecase{
		secret:       []byte(cfg.JWTSecret),
		accessExpiry: expiry,
		adminKeyHash: strings.TrimSpace(cfg.AdminKeyHash),
	}
}

func (u *authUsecase) IssueToken(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrMissingUser
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(u.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(u.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken returns the user id of a valid access token
func (u *authUsecase) ValidateToken(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return u.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// ValidateAdminKey compares key against the configured bcrypt hash.
// An empty hash disables the admin endpoints.
func (u *authUsecase) ValidateAdminKey(key string) bool {
	if u.adminKeyHash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.adminKeyHash), []byte(key)) == nil
}

// HashAdminKey produces the value for ADMIN_KEY_HASH
func HashAdminKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(bytes), err
}
