package auth

import (
	"context"
	"time"

	"docshare/internal/domain"
	"docshare/internal/pkg/jwt"
)

// UserRepository is the identity store. Lookups return gorm.ErrRecordNotFound
// for unknown users.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
}

// RefreshTokenStore keeps one record per issued refresh token.
type RefreshTokenStore interface {
	Create(ctx context.Context, token string, userID int64, expiresAt time.Time) (*domain.RefreshToken, error)
	FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	Rotate(ctx context.Context, t *domain.RefreshToken, newToken string, newExpiry time.Time) error
	DeleteByToken(ctx context.Context, token string) error
	Delete(ctx context.Context, t *domain.RefreshToken) error
}

type TokenCodec interface {
	Issue(kind jwt.Kind, payload jwt.Payload) (string, time.Time, error)
	Verify(token string) (*jwt.Claims, error)
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// Notifier delivers verification and reset links. Failures are logged by the
// service and never returned to callers.
type Notifier interface {
	SendVerificationLink(ctx context.Context, email, token string) error
	SendResetLink(ctx context.Context, email, token string) error
}
