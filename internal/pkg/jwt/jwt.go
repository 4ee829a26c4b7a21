// Package jwt issues and verifies the signed, time-limited tokens used by the
// auth flows: access, refresh, email verification and password reset.
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	KindAccess            Kind = "access"
	KindRefresh           Kind = "refresh"
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
)

// PurposePasswordReset is the discriminator carried by password reset tokens.
const PurposePasswordReset = "password_reset"

// ErrInvalidToken covers every verification failure: bad signature, unknown
// kind, malformed input and elapsed expiry are not distinguished.
var ErrInvalidToken = errors.New("invalid token")

// Payload is the kind-specific part of a token.
type Payload struct {
	UserID  int64
	Role    string
	Email   string
	Purpose string
}

type Claims struct {
	Kind    Kind   `json:"kind"`
	UserID  int64  `json:"user_id"`
	Role    string `json:"role,omitempty"`
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	jwtlib.RegisteredClaims
}

func (c *Claims) Payload() Payload {
	return Payload{
		UserID:  c.UserID,
		Role:    c.Role,
		Email:   c.Email,
		Purpose: c.Purpose,
	}
}

// KindConfig holds the signing secret and default lifetime for one token kind.
type KindConfig struct {
	Secret string
	TTL    time.Duration
}

type kindSpec struct {
	secret []byte
	ttl    time.Duration
}

type Service struct {
	kinds map[Kind]kindSpec
	now   func() time.Time
}

func New(kinds map[Kind]KindConfig) *Service {
	specs := make(map[Kind]kindSpec, len(kinds))
	for kind, cfg := range kinds {
		specs[kind] = kindSpec{secret: []byte(cfg.Secret), ttl: cfg.TTL}
	}
	return &Service{
		kinds: specs,
		now:   time.Now,
	}
}

// WithClock replaces the time source used for issuing and expiry checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TTL returns the configured lifetime of kind.
func (s *Service) TTL(kind Kind) time.Duration {
	return s.kinds[kind].ttl
}

// Issue signs payload as a token of the given kind with the kind's default TTL.
// The returned time is the expiry embedded in the token.
func (s *Service) Issue(kind Kind, payload Payload) (string, time.Time, error) {
	spec, ok := s.kinds[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown token kind %q", kind)
	}
	return s.IssueWithTTL(kind, payload, spec.ttl)
}

func (s *Service) IssueWithTTL(kind Kind, payload Payload, ttl time.Duration) (string, time.Time, error) {
	spec, ok := s.kinds[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown token kind %q", kind)
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("ttl for %q must be > 0", kind)
	}

	now := s.now()
	claims := Claims{
		Kind:    kind,
		UserID:  payload.UserID,
		Role:    payload.Role,
		Email:   payload.Email,
		Purpose: payload.Purpose,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(spec.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature with the secret of the kind recorded in the
// token, then the expiry.
func (s *Service) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, s.keyFor,
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyKind is Verify plus a check that the token was issued as kind.
func (s *Service) VerifyKind(kind Kind, tokenStr string) (*Claims, error) {
	claims, err := s.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) keyFor(t *jwtlib.Token) (any, error) {
	claims, ok := t.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	spec, ok := s.kinds[claims.Kind]
	if !ok {
		return nil, ErrInvalidToken
	}
	return spec.secret, nil
}
