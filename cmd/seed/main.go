package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"docshare/internal/config"
	"docshare/internal/database"
	"docshare/internal/domain"
	"docshare/internal/pkg/logging"
	"docshare/internal/pkg/password"
	"docshare/internal/repository"

	flags "github.com/jessevdk/go-flags"
	"golang.org/x/term"
)

type options struct {
	EnvFile    string `long:"env-file" default:".env" description:"Optional env file to load before the environment"`
	AdminEmail string `long:"admin-email" default:"admin@docshare.local" description:"Email of the administrator account"`
	AdminFirst string `long:"admin-first-name" default:"Site" description:"Administrator first name"`
	AdminLast  string `long:"admin-last-name" default:"Administrator" description:"Administrator last name"`
	Demo       bool   `long:"demo" description:"Also create demo member accounts (ignored in production)"`
}

type seedUser struct {
	first, last, email, password, affiliation string
	role                                      domain.UserRole
}

// readPassword is replaced in tests to avoid touching the terminal.
var readPassword = term.ReadPassword

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	adminPassword, err := adminPassword(cfg)
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Migrate failed:", err)
	}

	users := []seedUser{
		{opts.AdminFirst, opts.AdminLast, opts.AdminEmail, adminPassword, "", domain.RoleAdmin},
	}
	if opts.Demo && !cfg.IsProduction() {
		users = append(users,
			seedUser{"Ada", "Lovelace", "ada@docshare.local", "Member123!", "Analytical Society", domain.RoleMember},
			seedUser{"Alan", "Turing", "alan@docshare.local", "Member123!", "Bletchley Park", domain.RoleMember},
		)
	}

	ctx := context.Background()
	hasher := password.NewHasher(password.DefaultCost)
	userRepo := repository.NewUserRepository(db)

	for _, su := range users {
		if err := createVerified(ctx, userRepo, hasher, su); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				logger.Info(ctx, "user already exists, skipped", "email", logging.MaskEmail(su.email))
				continue
			}
			log.Fatalf("create %s: %v", logging.MaskEmail(su.email), err)
		}
		logger.Info(ctx, "user created", "email", logging.MaskEmail(su.email), "role", su.role)
	}
}

// adminPassword takes SEED_ADMIN_PASSWORD, prompts on a terminal, or falls
// back to a development default outside production.
func adminPassword(cfg *config.Config) (string, error) {
	pw := os.Getenv("SEED_ADMIN_PASSWORD")
	if pw == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Administrator password: ")
		raw, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		pw = strings.TrimSpace(string(raw))
	}
	if pw == "" {
		if cfg.IsProduction() {
			return "", errors.New("SEED_ADMIN_PASSWORD is required in production")
		}
		pw = "Admin123!"
	}
	if !password.ValidateComplexity(pw) {
		return "", errors.New("administrator password does not meet complexity requirements")
	}
	return pw, nil
}

func createVerified(ctx context.Context, repo *repository.UserRepository, hasher *password.Hasher, su seedUser) error {
	hash, err := hasher.Hash(su.password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	return repo.Create(ctx, &domain.User{
		FirstName:       su.first,
		LastName:        su.last,
		Email:           repository.NormalizeEmail(su.email),
		PasswordHash:    hash,
		Role:            su.role,
		Affiliation:     su.affiliation,
		EmailVerified:   true,
		EmailVerifiedAt: &now,
	})
}
