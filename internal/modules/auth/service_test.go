package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"docshare/internal/domain"
	"docshare/internal/pkg/jwt"
	"docshare/internal/pkg/logging"
	"docshare/internal/pkg/password"
	"docshare/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const strongPassword = "Str0ng!Pass"

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	if args.Error(0) == nil {
		u.ID = 42
	}
	return args.Error(0)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

type mockRefreshStore struct {
	mock.Mock
}

func (m *mockRefreshStore) Create(ctx context.Context, token string, userID int64, expiresAt time.Time) (*domain.RefreshToken, error) {
	args := m.Called(ctx, token, userID, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshStore) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockRefreshStore) Rotate(ctx context.Context, t *domain.RefreshToken, newToken string, newExpiry time.Time) error {
	args := m.Called(ctx, t, newToken, newExpiry)
	return args.Error(0)
}

func (m *mockRefreshStore) DeleteByToken(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockRefreshStore) Delete(ctx context.Context, t *domain.RefreshToken) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendVerificationLink(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

func (m *mockNotifier) SendResetLink(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTokens() *jwt.Service {
	return jwt.New(map[jwt.Kind]jwt.KindConfig{
		jwt.KindAccess:            {Secret: "access-secret", TTL: 15 * time.Minute},
		jwt.KindRefresh:           {Secret: "refresh-secret", TTL: 7 * 24 * time.Hour},
		jwt.KindEmailVerification: {Secret: "email-secret", TTL: 24 * time.Hour},
		jwt.KindPasswordReset:     {Secret: "reset-secret", TTL: time.Hour},
	}).WithClock(func() time.Time { return testNow })
}

type serviceFixture struct {
	svc      *Service
	users    *mockUserRepo
	refresh  *mockRefreshStore
	notifier *mockNotifier
	tokens   *jwt.Service
	hasher   *password.Hasher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		users:    &mockUserRepo{},
		refresh:  &mockRefreshStore{},
		notifier: &mockNotifier{},
		tokens:   newTestTokens(),
		hasher:   password.NewHasher(bcrypt.MinCost),
	}
	f.svc = NewService(f.users, f.refresh, f.tokens, f.hasher, f.notifier, logging.Nop())
	f.svc.now = func() time.Time { return testNow }
	t.Cleanup(func() {
		f.users.AssertExpectations(t)
		f.refresh.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
	})
	return f
}

func (f *serviceFixture) verifiedUser(t *testing.T, plain string) *domain.User {
	t.Helper()
	hash, err := f.hasher.Hash(plain)
	require.NoError(t, err)
	return &domain.User{
		ID:            7,
		FirstName:     "Grace",
		LastName:      "Hopper",
		Email:         "grace@navy.mil",
		PasswordHash:  hash,
		Role:          domain.RoleMember,
		EmailVerified: true,
	}
}

func TestRegister_Success(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(nil, gorm.ErrRecordNotFound)
	f.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)
	f.notifier.On("SendVerificationLink", mock.Anything, "ada@uni.edu", mock.AnythingOfType("string")).Return(nil)

	res, err := f.svc.Register(ctx, RegisterRequest{
		FirstName: " Ada ",
		LastName:  "Lovelace",
		Email:     "  Ada@Uni.edu ",
		Password:  strongPassword,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), res.User.ID)
	assert.Equal(t, "Ada", res.User.FirstName)
	assert.Equal(t, "ada@uni.edu", res.User.Email)
	assert.Equal(t, domain.RoleMember, res.User.Role)
	assert.False(t, res.User.EmailVerified)
	assert.Empty(t, res.User.PasswordHash)

	claims, err := f.tokens.Verify(res.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, jwt.KindEmailVerification, claims.Kind)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ada@uni.edu", claims.Email)

	created := f.users.Calls[1].Arguments.Get(1).(*domain.User)
	assert.True(t, f.hasher.Verify(strongPassword, created.PasswordHash))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)

	f.users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(&domain.User{ID: 1}, nil)

	_, err := f.svc.Register(context.Background(), RegisterRequest{Email: "ada@uni.edu", Password: strongPassword})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateEmailOnInsert(t *testing.T) {
	f := newServiceFixture(t)

	f.users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(nil, gorm.ErrRecordNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEmail)

	_, err := f.svc.Register(context.Background(), RegisterRequest{Email: "ada@uni.edu", Password: strongPassword})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegister_WeakPassword(t *testing.T) {
	f := newServiceFixture(t)

	f.users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(nil, gorm.ErrRecordNotFound)

	_, err := f.svc.Register(context.Background(), RegisterRequest{Email: "ada@uni.edu", Password: "password"})
	assert.ErrorIs(t, err, ErrWeakPassword)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_PasswordOverHashLimitIsWeak(t *testing.T) {
	f := newServiceFixture(t)

	f.users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(nil, gorm.ErrRecordNotFound)

	long := "Aa1!" + strings.Repeat("x", 80)
	_, err := f.svc.Register(context.Background(), RegisterRequest{Email: "ada@uni.edu", Password: long})
	assert.ErrorIs(t, err, ErrWeakPassword)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_NotificationFailureIsSwallowed(t *testing.T) {
	f := newServiceFixture(t)

	f.users.On("GetByEmail", mock.Anything, "ada@uni.edu").Return(nil, gorm.ErrRecordNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("SendVerificationLink", mock.Anything, "ada@uni.edu", mock.Anything).Return(errors.New("smtp down"))

	res, err := f.svc.Register(context.Background(), RegisterRequest{Email: "ada@uni.edu", Password: strongPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, res.VerificationToken)
}

func TestVerifyEmail(t *testing.T) {
	t.Run("marks user verified", func(t *testing.T) {
		f := newServiceFixture(t)
		user := &domain.User{ID: 3, Email: "a@b.c"}
		token, _, err := f.tokens.Issue(jwt.KindEmailVerification, jwt.Payload{UserID: 3, Email: "a@b.c"})
		require.NoError(t, err)

		f.users.On("GetByID", mock.Anything, int64(3)).Return(user, nil)
		f.users.On("Update", mock.Anything, user).Return(nil)

		got, err := f.svc.VerifyEmail(context.Background(), token)
		require.NoError(t, err)
		assert.True(t, got.EmailVerified)
		require.NotNil(t, got.EmailVerifiedAt)
		assert.Equal(t, testNow, *got.EmailVerifiedAt)
	})

	t.Run("already verified is a no-op", func(t *testing.T) {
		f := newServiceFixture(t)
		user := &domain.User{ID: 3, EmailVerified: true}
		token, _, err := f.tokens.Issue(jwt.KindEmailVerification, jwt.Payload{UserID: 3})
		require.NoError(t, err)

		f.users.On("GetByID", mock.Anything, int64(3)).Return(user, nil)

		got, err := f.svc.VerifyEmail(context.Background(), token)
		require.NoError(t, err)
		assert.True(t, got.EmailVerified)
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("wrong kind", func(t *testing.T) {
		f := newServiceFixture(t)
		token, _, err := f.tokens.Issue(jwt.KindPasswordReset, jwt.Payload{UserID: 3, Purpose: jwt.PurposePasswordReset})
		require.NoError(t, err)

		_, err = f.svc.VerifyEmail(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.VerifyEmail(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("user gone", func(t *testing.T) {
		f := newServiceFixture(t)
		token, _, err := f.tokens.Issue(jwt.KindEmailVerification, jwt.Payload{UserID: 9})
		require.NoError(t, err)
		f.users.On("GetByID", mock.Anything, int64(9)).Return(nil, gorm.ErrRecordNotFound)

		_, err = f.svc.VerifyEmail(context.Background(), token)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestResendVerification(t *testing.T) {
	t.Run("unknown email", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "x@y.z").Return(nil, gorm.ErrRecordNotFound)

		ok, err := f.svc.ResendVerification(context.Background(), "X@Y.z")
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("already verified", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "x@y.z").Return(&domain.User{ID: 1, EmailVerified: true}, nil)

		_, err := f.svc.ResendVerification(context.Background(), "x@y.z")
		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})

	t.Run("sends new link", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "x@y.z").Return(&domain.User{ID: 1, Email: "x@y.z"}, nil)
		f.notifier.On("SendVerificationLink", mock.Anything, "x@y.z", mock.AnythingOfType("string")).Return(nil)

		ok, err := f.svc.ResendVerification(context.Background(), "x@y.z")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestLogin(t *testing.T) {
	t.Run("unknown email", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "nobody@x.y").Return(nil, gorm.ErrRecordNotFound)

		_, err := f.svc.Login(context.Background(), LoginRequest{Email: "nobody@x.y", Password: strongPassword})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unverified is checked before password", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.verifiedUser(t, strongPassword)
		user.EmailVerified = false
		f.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

		_, err := f.svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "wrong"})
		assert.ErrorIs(t, err, ErrAccountNotVerified)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.verifiedUser(t, strongPassword)
		f.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

		_, err := f.svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "Wr0ng!Pass"})
		assert.ErrorIs(t, err, ErrIncorrectPassword)
	})

	t.Run("issues pair and stores refresh token", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.verifiedUser(t, strongPassword)
		f.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
		f.refresh.On("Create", mock.Anything, mock.AnythingOfType("string"), user.ID, testNow.Add(7*24*time.Hour)).
			Return(&domain.RefreshToken{ID: 1, UserID: user.ID}, nil)

		res, err := f.svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: strongPassword})
		require.NoError(t, err)
		assert.Empty(t, res.User.PasswordHash)

		access, err := f.tokens.VerifyKind(jwt.KindAccess, res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, access.UserID)
		assert.Equal(t, string(domain.RoleMember), access.Role)

		refresh, err := f.tokens.VerifyKind(jwt.KindRefresh, res.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, refresh.UserID)
		assert.True(t, res.RefreshExpiresAt.After(testNow))
	})
}

func TestRefreshTokens(t *testing.T) {
	t.Run("unknown token", func(t *testing.T) {
		f := newServiceFixture(t)
		f.refresh.On("FindByToken", mock.Anything, "stale").Return(nil, gorm.ErrRecordNotFound)

		_, err := f.svc.RefreshTokens(context.Background(), "stale")
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})

	t.Run("expired record is deleted", func(t *testing.T) {
		f := newServiceFixture(t)
		token, _, err := f.tokens.Issue(jwt.KindRefresh, jwt.Payload{UserID: 7})
		require.NoError(t, err)
		record := &domain.RefreshToken{ID: 1, UserID: 7, ExpiresAt: testNow.Add(-time.Minute)}

		f.refresh.On("FindByToken", mock.Anything, token).Return(record, nil)
		f.refresh.On("Delete", mock.Anything, record).Return(nil)

		_, err = f.svc.RefreshTokens(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredRefreshToken)
	})

	t.Run("access token stored as refresh is rejected", func(t *testing.T) {
		f := newServiceFixture(t)
		token, _, err := f.tokens.Issue(jwt.KindAccess, jwt.Payload{UserID: 7})
		require.NoError(t, err)
		record := &domain.RefreshToken{ID: 1, UserID: 7, ExpiresAt: testNow.Add(time.Hour)}

		f.refresh.On("FindByToken", mock.Anything, token).Return(record, nil)
		f.refresh.On("Delete", mock.Anything, record).Return(nil)

		_, err = f.svc.RefreshTokens(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredRefreshToken)
	})

	t.Run("rotates in place", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.verifiedUser(t, strongPassword)
		token, _, err := f.tokens.Issue(jwt.KindRefresh, jwt.Payload{UserID: user.ID})
		require.NoError(t, err)
		record := &domain.RefreshToken{ID: 1, UserID: user.ID, ExpiresAt: testNow.Add(time.Hour)}

		f.refresh.On("FindByToken", mock.Anything, token).Return(record, nil)
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.refresh.On("Rotate", mock.Anything, record, mock.AnythingOfType("string"), testNow.Add(7*24*time.Hour)).Return(nil)

		pair, err := f.svc.RefreshTokens(context.Background(), token)
		require.NoError(t, err)
		assert.NotEqual(t, token, pair.RefreshToken)
		_, err = f.tokens.VerifyKind(jwt.KindAccess, pair.AccessToken)
		assert.NoError(t, err)
	})

	t.Run("lost rotation race", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.verifiedUser(t, strongPassword)
		token, _, err := f.tokens.Issue(jwt.KindRefresh, jwt.Payload{UserID: user.ID})
		require.NoError(t, err)
		record := &domain.RefreshToken{ID: 1, UserID: user.ID, ExpiresAt: testNow.Add(time.Hour)}

		f.refresh.On("FindByToken", mock.Anything, token).Return(record, nil)
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.refresh.On("Rotate", mock.Anything, record, mock.Anything, mock.Anything).Return(repository.ErrRefreshTokenConflict)

		_, err = f.svc.RefreshTokens(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	})
}

func TestRevoke_UnknownTokenSucceeds(t *testing.T) {
	f := newServiceFixture(t)
	f.refresh.On("DeleteByToken", mock.Anything, "whatever").Return(nil)

	assert.NoError(t, f.svc.Revoke(context.Background(), "whatever"))
}

func TestRequestPasswordReset(t *testing.T) {
	f := newServiceFixture(t)
	user := f.verifiedUser(t, strongPassword)
	var sent string

	f.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)
	f.notifier.On("SendResetLink", mock.Anything, user.Email, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { sent = args.String(2) }).
		Return(nil)

	ok, err := f.svc.RequestPasswordReset(context.Background(), user.Email)
	require.NoError(t, err)
	assert.True(t, ok)

	claims, err := f.tokens.VerifyKind(jwt.KindPasswordReset, sent)
	require.NoError(t, err)
	assert.Equal(t, jwt.PurposePasswordReset, claims.Purpose)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	f := newServiceFixture(t)
	f.users.On("GetByEmail", mock.Anything, "ghost@x.y").Return(nil, gorm.ErrRecordNotFound)

	_, err := f.svc.RequestPasswordReset(context.Background(), "ghost@x.y")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestResetPassword(t *testing.T) {
	t.Run("email verification token is the wrong type", func(t *testing.T) {
		f := newServiceFixture(t)
		token, _, err := f.tokens.Issue(jwt.KindEmailVerification, jwt.Payload{UserID: 7, Email: "grace@navy.mil"})
		require.NoError(t, err)

		_, err = f.svc.ResetPassword(context.Background(), token, strongPassword)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newServiceFixture(t)
		token, _, err := f.tokens.IssueWithTTL(jwt.KindPasswordReset, jwt.Payload{UserID: 7, Purpose: jwt.PurposePasswordReset}, time.Minute)
		require.NoError(t, err)
		f.tokens.WithClock(func() time.Time { return testNow.Add(2 * time.Minute) })

		_, err = f.svc.ResetPassword(context.Background(), token, strongPassword)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("weak password", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.verifiedUser(t, strongPassword)
		token, _, err := f.tokens.Issue(jwt.KindPasswordReset, jwt.Payload{UserID: user.ID, Purpose: jwt.PurposePasswordReset})
		require.NoError(t, err)
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

		_, err = f.svc.ResetPassword(context.Background(), token, "short")
		assert.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("updates hash", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.verifiedUser(t, strongPassword)
		token, _, err := f.tokens.Issue(jwt.KindPasswordReset, jwt.Payload{UserID: user.ID, Purpose: jwt.PurposePasswordReset})
		require.NoError(t, err)
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		f.users.On("Update", mock.Anything, user).Return(nil)

		_, err = f.svc.ResetPassword(context.Background(), token, "N3w!Password")
		require.NoError(t, err)
		assert.True(t, f.hasher.Verify("N3w!Password", user.PasswordHash))
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("weak new password is checked first", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.svc.ChangePassword(context.Background(), 7, strongPassword, "weak")
		assert.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("over hash limit", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.svc.ChangePassword(context.Background(), 7, strongPassword, "Aa1!"+strings.Repeat("x", 80))
		assert.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("user not found", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByID", mock.Anything, int64(7)).Return(nil, gorm.ErrRecordNotFound)

		_, err := f.svc.ChangePassword(context.Background(), 7, strongPassword, "N3w!Password")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("old password incorrect", func(t *testing.T) {
		f := newServiceFixture(t)
		user := f.verifiedUser(t, strongPassword)
		f.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)

		_, err := f.svc.ChangePassword(context.Background(), user.ID, "Wr0ng!Pass", "N3w!Password")
		assert.ErrorIs(t, err, ErrOldPasswordIncorrect)
	})
}
