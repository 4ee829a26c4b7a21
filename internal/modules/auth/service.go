package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docshare/internal/domain"
	"docshare/internal/pkg/jwt"
	"docshare/internal/pkg/logging"
	"docshare/internal/pkg/password"
	"docshare/internal/repository"

	"gorm.io/gorm"
)

// Service implements account identity and session lifecycle: registration with
// email confirmation, login, refresh rotation, revocation and password flows.
type Service struct {
	users    UserRepository
	refresh  RefreshTokenStore
	tokens   TokenCodec
	hasher   PasswordHasher
	notifier Notifier
	logger   logging.Logger
	now      func() time.Time
}

func NewService(
	users UserRepository,
	refresh RefreshTokenStore,
	tokens TokenCodec,
	hasher PasswordHasher,
	notifier Notifier,
	logger logging.Logger,
) *Service {
	return &Service{
		users:    users,
		refresh:  refresh,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	email := repository.NormalizeEmail(req.Email)

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrDuplicateEmail
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	if !password.ValidateComplexity(req.Password) {
		return nil, ErrWeakPassword
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Email:         email,
		PasswordHash:  hash,
		Role:          domain.RoleMember,
		Phone:         strings.TrimSpace(req.Phone),
		Affiliation:   strings.TrimSpace(req.Affiliation),
		Department:    strings.TrimSpace(req.Department),
		EmailVerified: false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.issueVerificationToken(user)
	if err != nil {
		return nil, err
	}
	s.sendVerificationLink(ctx, user, token)

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return &RegisterResult{User: user.Public(), VerificationToken: token}, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil || claims.Kind != jwt.KindEmailVerification {
		return nil, ErrInvalidToken
	}

	user, err := s.getUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	if !user.EmailVerified {
		now := s.now().UTC()
		user.EmailVerified = true
		user.EmailVerifiedAt = &now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("mark email verified: %w", err)
		}
		s.logger.Info(ctx, "email verified", "user_id", user.ID)
	}

	return user.Public(), nil
}

// ResendVerification issues a fresh verification token. Tokens sent earlier
// stay valid until their own expiry.
func (s *Service) ResendVerification(ctx context.Context, email string) (bool, error) {
	user, err := s.getUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user.EmailVerified {
		return false, ErrAlreadyVerified
	}

	token, err := s.issueVerificationToken(user)
	if err != nil {
		return false, err
	}
	s.sendVerificationLink(ctx, user, token)
	return true, nil
}

// Login checks the verified flag before the password, then issues an access
// and refresh token pair and records the refresh token.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, repository.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	if !user.EmailVerified {
		return nil, ErrAccountNotVerified
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, ErrIncorrectPassword
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	if _, err := s.refresh.Create(ctx, pair.RefreshToken, user.ID, pair.RefreshExpiresAt); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{
		User:             user.Public(),
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}, nil
}

// RefreshTokens exchanges a stored refresh token for a new pair and rotates
// the stored record in place, so the presented token stops working.
func (s *Service) RefreshTokens(ctx context.Context, presented string) (*TokenPair, error) {
	record, err := s.refresh.FindByToken(ctx, presented)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	claims, err := s.tokens.Verify(presented)
	if err != nil || claims.Kind != jwt.KindRefresh || claims.UserID != record.UserID || record.IsExpired(s.now()) {
		// A stored token that no longer verifies is destroyed.
		if delErr := s.refresh.Delete(ctx, record); delErr != nil {
			return nil, errors.Join(ErrInvalidOrExpiredRefreshToken, fmt.Errorf("delete refresh token: %w", delErr))
		}
		s.logger.Warn(ctx, "refresh token failed verification, record deleted", "user_id", record.UserID)
		return nil, ErrInvalidOrExpiredRefreshToken
	}

	user, err := s.getUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Rotate(ctx, record, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenConflict) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return pair, nil
}

// Revoke deletes the stored refresh token. Unknown tokens are ignored and no
// signature check is made.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	if err := s.refresh.DeleteByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *Service) RequestPasswordReset(ctx context.Context, email string) (bool, error) {
	user, err := s.getUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}

	token, _, err := s.tokens.Issue(jwt.KindPasswordReset, jwt.Payload{
		UserID:  user.ID,
		Purpose: jwt.PurposePasswordReset,
	})
	if err != nil {
		return false, fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.notifier.SendResetLink(ctx, user.Email, token); err != nil {
		s.logger.Warn(ctx, "failed to send password reset email", "user_id", user.ID, "error", err)
	}
	return true, nil
}

// ResetPassword sets a new password using a mailed reset token. The token is
// not consumed and stays usable until it expires.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (*domain.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}
	if claims.Kind != jwt.KindPasswordReset || claims.Purpose != jwt.PurposePasswordReset {
		return nil, ErrWrongTokenType
	}

	user, err := s.getUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "password reset", "user_id", user.ID)
	return user.Public(), nil
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) (bool, error) {
	if !password.ValidateComplexity(newPassword) {
		return false, ErrWeakPassword
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return false, ErrOldPasswordIncorrect
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return false, err
	}

	s.logger.Info(ctx, "password changed", "user_id", user.ID)
	return true, nil
}

func (s *Service) GetCurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

func (s *Service) setPassword(ctx context.Context, user *domain.User, newPassword string) error {
	if !password.ValidateComplexity(newPassword) {
		return ErrWeakPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *Service) issuePair(user *domain.User) (*TokenPair, error) {
	payload := jwt.Payload{UserID: user.ID, Role: string(user.Role)}

	access, _, err := s.tokens.Issue(jwt.KindAccess, payload)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.tokens.Issue(jwt.KindRefresh, payload)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpiresAt: refreshExp}, nil
}

func (s *Service) issueVerificationToken(user *domain.User) (string, error) {
	token, _, err := s.tokens.Issue(jwt.KindEmailVerification, jwt.Payload{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		return "", fmt.Errorf("issue verification token: %w", err)
	}
	return token, nil
}

func (s *Service) sendVerificationLink(ctx context.Context, user *domain.User, token string) {
	if err := s.notifier.SendVerificationLink(ctx, user.Email, token); err != nil {
		s.logger.Warn(ctx, "failed to send verification email", "user_id", user.ID, "error", err)
	}
}

func (s *Service) getUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *Service) getUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, repository.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}
