package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"docshare/internal/domain"
	"docshare/internal/pkg/response"
	"docshare/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

const refreshCookieName = "refresh_token"

// AuthService is the set of operations the HTTP layer needs.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
	VerifyEmail(ctx context.Context, token string) (*domain.User, error)
	ResendVerification(ctx context.Context, email string) (bool, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) (bool, error)
	ResetPassword(ctx context.Context, token, newPassword string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) (bool, error)
	GetCurrentUser(ctx context.Context, userID int64) (*domain.User, error)
}

// HandlerConfig controls the refresh cookie. ExposeVerificationToken puts the
// verification token in the register response; it is meant for setups
// without outgoing mail.
type HandlerConfig struct {
	CookieSecure            bool
	CookieSameSite          string
	CookiePath              string
	ExposeVerificationToken bool
}

// Handler manages all HTTP interactions for authentication
type Handler struct {
	service AuthService
	cfg     HandlerConfig
}

func NewHandler(service AuthService, cfg HandlerConfig) *Handler {
	return &Handler{service: service, cfg: cfg}
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{ErrDuplicateEmail, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered"},
	{ErrAlreadyVerified, http.StatusConflict, "ALREADY_VERIFIED", "Email is already verified"},
	{ErrWeakPassword, http.StatusBadRequest, "WEAK_PASSWORD", "Password must be at least 8 characters and contain upper and lower case letters, a digit and a special character"},
	{ErrWrongTokenType, http.StatusBadRequest, "WRONG_TOKEN_TYPE", "Token cannot be used for this operation"},
	{ErrInvalidToken, http.StatusBadRequest, "INVALID_TOKEN", "Token is invalid"},
	{ErrInvalidOrExpiredToken, http.StatusBadRequest, "INVALID_OR_EXPIRED_TOKEN", "Token is invalid or expired"},
	{ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND", "User not found"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password"},
	{ErrIncorrectPassword, http.StatusUnauthorized, "INCORRECT_PASSWORD", "Invalid email or password"},
	{ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is missing or invalid"},
	{ErrInvalidOrExpiredRefreshToken, http.StatusUnauthorized, "INVALID_OR_EXPIRED_REFRESH_TOKEN", "Refresh token is invalid or expired"},
	{ErrOldPasswordIncorrect, http.StatusUnauthorized, "OLD_PASSWORD_INCORRECT", "Old password is incorrect"},
	{ErrAccountNotVerified, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Email must be verified before login"},
}

// writeError maps service errors to the response envelope. Unknown errors are
// attached to the context for ErrorLogger and answered with fallbackCode.
func writeError(c *gin.Context, err error, fallbackCode, fallbackMessage string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			response.CustomError(c, m.status, m.code, m.message)
			return
		}
	}
	_ = c.Error(err)
	response.CustomError(c, http.StatusInternalServerError, fallbackCode, fallbackMessage)
}

// bindJSON binds and validates the request body, writing the 400 response
// itself when it fails.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return false
	}
	if fields := validator.Validate(req); fields != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", fields)
		return false
	}
	return true
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "REGISTRATION_FAILED", "Failed to register user")
		return
	}

	data := gin.H{
		"user":              result.User,
		"verification_sent": true,
	}
	if h.cfg.ExposeVerificationToken {
		data["verification_token"] = result.VerificationToken
	}
	response.Success(c, http.StatusCreated, data)
}

// VerifyEmail accepts the token as JSON body or, for links opened in a
// browser, as the token query parameter.
func (h *Handler) VerifyEmail(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if c.Request.Method == http.MethodPost {
		var req VerifyEmailRequest
		if !bindJSON(c, &req) {
			return
		}
		token = strings.TrimSpace(req.Token)
	}
	if token == "" {
		response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Token is required")
		return
	}

	user, err := h.service.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		writeError(c, err, "VERIFICATION_FAILED", "Failed to verify email")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"status": "verified",
		"user":   user,
	})
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}

	sent, err := h.service.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err, "RESEND_FAILED", "Failed to resend verification email")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"verification_sent": sent})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "LOGIN_FAILED", "Failed to login")
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, result.RefreshExpiresAt)
	response.Success(c, http.StatusOK, gin.H{
		"user": result.User,
		"tokens": gin.H{
			"access_token":       result.AccessToken,
			"refresh_token":      result.RefreshToken,
			"refresh_expires_at": result.RefreshExpiresAt,
		},
	})
}

// Refresh reads the refresh token from the cookie, falling back to the JSON body.
func (h *Handler) Refresh(c *gin.Context) {
	refreshRaw := h.presentedRefreshToken(c)
	if refreshRaw == "" {
		response.CustomError(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is missing or invalid")
		return
	}

	pair, err := h.service.RefreshTokens(c.Request.Context(), refreshRaw)
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredRefreshToken) {
			h.clearRefreshCookie(c)
		}
		writeError(c, err, "REFRESH_FAILED", "Failed to refresh session")
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpiresAt)
	response.Success(c, http.StatusOK, gin.H{
		"tokens": gin.H{
			"access_token":       pair.AccessToken,
			"refresh_token":      pair.RefreshToken,
			"refresh_expires_at": pair.RefreshExpiresAt,
		},
	})
}

func (h *Handler) Logout(c *gin.Context) {
	for _, refreshRaw := range h.presentedRefreshTokens(c) {
		if err := h.service.Revoke(c.Request.Context(), refreshRaw); err != nil {
			writeError(c, err, "LOGOUT_FAILED", "Failed to logout")
			return
		}
	}

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}

	sent, err := h.service.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err, "RESET_REQUEST_FAILED", "Failed to request password reset")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"reset_sent": sent})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.service.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		writeError(c, err, "RESET_FAILED", "Failed to reset password")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

func (h *Handler) GetMe(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	user, err := h.service.GetCurrentUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "PROFILE_FAILED", "Failed to load profile")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// GetUser returns any account by id. Mounted behind AdminOnly.
func (h *Handler) GetUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		response.CustomError(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return
	}

	user, err := h.service.GetCurrentUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "USER_LOOKUP_FAILED", "Failed to load user")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	changed, err := h.service.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword)
	if err != nil {
		writeError(c, err, "CHANGE_PASSWORD_FAILED", "Failed to change password")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"changed": changed})
}

func (h *Handler) presentedRefreshToken(c *gin.Context) string {
	if tokens := h.presentedRefreshTokens(c); len(tokens) > 0 {
		return tokens[0]
	}
	return ""
}

// presentedRefreshTokens returns the cookie token first, then a distinct body token.
func (h *Handler) presentedRefreshTokens(c *gin.Context) []string {
	var tokens []string
	if raw, err := c.Cookie(refreshCookieName); err == nil && strings.TrimSpace(raw) != "" {
		tokens = append(tokens, strings.TrimSpace(raw))
	}
	var req RefreshRequest
	if c.Request.ContentLength != 0 && c.ShouldBindJSON(&req) == nil {
		body := strings.TrimSpace(req.RefreshToken)
		if body != "" && (len(tokens) == 0 || tokens[0] != body) {
			tokens = append(tokens, body)
		}
	}
	return tokens
}

func (h *Handler) setRefreshCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(parseSameSite(h.cfg.CookieSameSite))
	c.SetCookie(refreshCookieName, token, maxAge, h.cfg.CookiePath, "", h.cfg.CookieSecure, true)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(parseSameSite(h.cfg.CookieSameSite))
	c.SetCookie(refreshCookieName, "", -1, h.cfg.CookiePath, "", h.cfg.CookieSecure, true)
}

func parseSameSite(mode string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
