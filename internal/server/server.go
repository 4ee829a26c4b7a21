// Package server wires configuration, storage and the auth module into a
// gin engine.
package server

import (
	"net/http"

	"docshare/internal/config"
	"docshare/internal/middleware"
	"docshare/internal/modules/auth"
	"docshare/internal/notification"
	"docshare/internal/pkg/jwt"
	"docshare/internal/pkg/logging"
	"docshare/internal/pkg/password"
	"docshare/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies are the process-scoped collaborators. Mailer may be nil, in
// which case one is built from cfg.
type Dependencies struct {
	Config *config.Config
	DB     *gorm.DB
	Logger logging.Logger
	Mailer auth.Notifier
	Hasher *password.Hasher
}

// NewTokenService builds the per-kind token codec from cfg.
func NewTokenService(cfg *config.Config) *jwt.Service {
	return jwt.New(map[jwt.Kind]jwt.KindConfig{
		jwt.KindAccess:            {Secret: cfg.JWTAccessSecret, TTL: cfg.JWTAccessTTL},
		jwt.KindRefresh:           {Secret: cfg.JWTRefreshSecret, TTL: cfg.RefreshTTL},
		jwt.KindEmailVerification: {Secret: cfg.EmailTokenSecret, TTL: cfg.EmailVerifyTTL},
		jwt.KindPasswordReset:     {Secret: cfg.ResetTokenSecret, TTL: cfg.PasswordResetTTL},
	})
}

func NewRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	logger := deps.Logger

	mailer := deps.Mailer
	if mailer == nil {
		m, err := notification.NewMailer(notification.Config{
			Host:       cfg.SMTPHost,
			User:       cfg.SMTPUser,
			Password:   cfg.SMTPPassword,
			From:       cfg.MailFrom,
			SkipVerify: cfg.SMTPSkipVerify,
			BaseURL:    cfg.AppBaseURL,
			HideLinks:  cfg.IsProduction(),
		}, logger)
		if err != nil {
			return nil, err
		}
		mailer = m
	}

	hasher := deps.Hasher
	if hasher == nil {
		hasher = password.NewHasher(password.DefaultCost)
	}

	tokens := NewTokenService(cfg)
	userRepo := repository.NewUserRepository(deps.DB)
	refreshRepo := repository.NewRefreshTokenRepository(deps.DB, cfg.RefreshTokenPepper)

	authService := auth.NewService(userRepo, refreshRepo, tokens, hasher, mailer, logger)
	authHandler := auth.NewHandler(authService, auth.HandlerConfig{
		CookieSecure:            cfg.CookieSecure,
		CookieSameSite:          cfg.CookieSameSite,
		CookiePath:              cfg.CookiePath,
		ExposeVerificationToken: !cfg.MailEnabled() && !cfg.IsProduction(),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.ErrorLogger(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(tokens))
		{
			authHandler.RegisterProtectedRoutes(protected)

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminOnly())
			authHandler.RegisterAdminRoutes(admin)
		}
	}

	return r, nil
}
