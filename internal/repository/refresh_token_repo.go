package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"docshare/internal/domain"

	"gorm.io/gorm"
)

// RefreshTokenRepository persists one row per issued refresh token.
type RefreshTokenRepository struct {
	db     *gorm.DB
	pepper string
}

func NewRefreshTokenRepository(db *gorm.DB, pepper string) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db, pepper: pepper}
}

func (r *RefreshTokenRepository) hash(token string) string {
	sum := sha256.Sum256([]byte(token + r.pepper))
	return hex.EncodeToString(sum[:])
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token string, userID int64, expiresAt time.Time) (*domain.RefreshToken, error) {
	t := &domain.RefreshToken{
		UserID:    userID,
		TokenHash: r.hash(token),
		ExpiresAt: expiresAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// FindByToken returns gorm.ErrRecordNotFound when no row matches token.
func (r *RefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).Where("token_hash = ?", r.hash(token)).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Rotate rewrites t in place with newToken and newExpiry. The update only
// applies while the row still holds the hash t was read with; otherwise
// ErrRefreshTokenConflict is returned.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, t *domain.RefreshToken, newToken string, newExpiry time.Time) error {
	newHash := r.hash(newToken)
	now := time.Now().UTC()

	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("id = ? AND token_hash = ?", t.ID, t.TokenHash).
		Updates(map[string]any{
			"token_hash": newHash,
			"expires_at": newExpiry.UTC(),
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRefreshTokenConflict
	}

	t.TokenHash = newHash
	t.ExpiresAt = newExpiry.UTC()
	t.UpdatedAt = now
	return nil
}

// DeleteByToken removes the row matching token. A missing row is not an error.
func (r *RefreshTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Where("token_hash = ?", r.hash(token)).
		Delete(&domain.RefreshToken{}).Error
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, t *domain.RefreshToken) error {
	return r.db.WithContext(ctx).Delete(&domain.RefreshToken{}, t.ID).Error
}

// DeleteExpired purges rows whose expiry is before now and reports how many.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now.UTC()).
		Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}
