package domain

import "time"

// RefreshToken is the server-side record of an issued refresh token.
//
// The raw token is never stored, only its peppered SHA-256 hash. On refresh the
// same row is rewritten with the new hash and expiry, so the previous token
// stops resolving immediately.
type RefreshToken struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	UserID int64 `json:"user_id" gorm:"index;not null"`

	TokenHash string `json:"-" gorm:"size:64;uniqueIndex;not null"`

	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
