package auth

import "errors"

var (
	ErrDuplicateEmail               = errors.New("email already exists")
	ErrWeakPassword                 = errors.New("password does not meet complexity requirements")
	ErrUserNotFound                 = errors.New("user not found")
	ErrInvalidToken                 = errors.New("invalid token")
	ErrInvalidOrExpiredToken        = errors.New("invalid or expired token")
	ErrWrongTokenType               = errors.New("wrong token type")
	ErrInvalidCredentials           = errors.New("invalid credentials")
	ErrAccountNotVerified           = errors.New("account not verified")
	ErrIncorrectPassword            = errors.New("incorrect password")
	ErrInvalidRefreshToken          = errors.New("invalid refresh token")
	ErrInvalidOrExpiredRefreshToken = errors.New("invalid or expired refresh token")
	ErrOldPasswordIncorrect         = errors.New("old password is incorrect")
	ErrAlreadyVerified              = errors.New("email already verified")
)
