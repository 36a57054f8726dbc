package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/get-me-through/server/internal/api"
	"github.com/get-me-through/server/internal/audit"
	"github.com/get-me-through/server/internal/config"
	"github.com/get-me-through/server/internal/domain/categories"
	"github.com/get-me-through/server/internal/domain/events"
	"github.com/get-me-through/server/internal/domain/otp"
	"github.com/get-me-through/server/internal/domain/payments"
	"github.com/get-me-through/server/internal/domain/registrations"
	"github.com/get-me-through/server/internal/domain/sessions"
	"github.com/get-me-through/server/internal/domain/tickets"
	"github.com/get-me-through/server/internal/domain/users"
	"github.com/get-me-through/server/internal/email"
	"github.com/get-me-through/server/internal/jobs"
	"github.com/get-me-through/server/internal/metrics"
	"github.com/get-me-through/server/internal/objectstore"
	"github.com/get-me-through/server/internal/razorpay"
	"github.com/get-me-through/server/internal/search"
	"github.com/get-me-through/server/internal/storage/postgres"

	authpkg "github.com/get-me-through/server/internal/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (and .env if present)
- Bootstrap an admin account if ADMIN_* env vars are set
- Start the River workers for email delivery and token cleanup
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Msg("starting get-me-through server")

	metrics.AppInfo.WithLabelValues(Version, GitCommit, BuildDate).Set(1)

	poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := newPool(poolCtx, cfg.Database)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	bootstrapCtx, bootstrapCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := bootstrapAdminUser(bootstrapCtx, pool, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	bootstrapCancel()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	deps, riverClient, err := buildServices(pool, repo, cfg, logger)
	if err != nil {
		return err
	}

	riverCtx, riverCancel := context.WithCancel(context.Background())
	defer riverCancel()
	if err := riverClient.Start(riverCtx); err != nil {
		return fmt.Errorf("river workers failed to start: %w", err)
	}
	logger.Info().Msg("river background job workers started")
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("river workers shutdown error")
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(deps),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	return gracefulShutdown(server, logger)
}

func buildServices(pool *pgxpool.Pool, repo *postgres.Repository, cfg config.Config, logger zerolog.Logger) (api.Deps, *river.Client[pgx.Tx], error) {
	emailService, err := email.NewService(cfg.Email, repo.EmailLogs(), logger)
	if err != nil {
		return api.Deps{}, nil, fmt.Errorf("email service: %w", err)
	}

	workers, err := jobs.NewWorkers(emailService, cfg.Email.OperatorAddr, pool)
	if err != nil {
		return api.Deps{}, nil, fmt.Errorf("job workers: %w", err)
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	riverClient, err := jobs.NewClient(pool, workers, slogLogger, jobs.NewPeriodicJobs())
	if err != nil {
		return api.Deps{}, nil, fmt.Errorf("river client: %w", err)
	}
	enqueuer := jobs.NewEnqueuer(riverClient)

	userService := users.NewService(repo.Users(), enqueuer, cfg.Server.FrontendURL, logger)

	accessManager := authpkg.NewTokenManager(cfg.Auth.AccessSecret, cfg.Auth.AccessExpiry, cfg.Auth.Issuer)
	refreshManager := authpkg.NewTokenManager(cfg.Auth.RefreshSecret, 0, cfg.Auth.Issuer)
	sessionService := sessions.NewService(accessManager, refreshManager, repo.Sessions(), userService, logger)

	otpService := otp.NewService(repo.OTP(), userService, enqueuer, cfg.Server.FrontendURL, logger)
	eventService := events.NewService(repo.Events(), logger)

	provider := razorpay.NewClient(cfg.Payments.ProviderKeyID, cfg.Payments.ProviderKeySecret, cfg.Payments.CallTimeout)
	paymentService := payments.NewService(
		repo.Payments(),
		eventService,
		provider,
		audit.NewLogger(),
		enqueuer,
		payments.Config{
			Currency:      cfg.Payments.Currency,
			WebhookSecret: cfg.Payments.WebhookSecret,
			KeySecret:     cfg.Payments.ProviderKeySecret,
		},
		logger,
	)

	registrationService := registrations.NewService(repo.Registrations(), eventService, paymentService, logger)

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := objectstore.NewS3Store(storeCtx, cfg.Storage, logger)
	storeCancel()
	if err != nil {
		return api.Deps{}, nil, fmt.Errorf("object store: %w", err)
	}

	deps := api.Deps{
		Config:        cfg,
		Logger:        logger,
		Pool:          pool,
		Users:         userService,
		Sessions:      sessionService,
		OTP:           otpService,
		Events:        eventService,
		Registrations: registrationService,
		Payments:      paymentService,
		Categories:    categories.NewService(repo.Categories(), logger),
		Tickets:       tickets.NewService(repo.Tickets(), logger),
		Email:         emailService,
		Searcher:      search.New(eventService),
		Store:         store,
	}
	return deps, riverClient, nil
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdle)
	}
	return pgxpool.NewWithConfig(ctx, poolConfig)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, nil
}

func bootstrapAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, logger zerolog.Logger) error {
	name := os.Getenv("ADMIN_NAME")
	emailAddr := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if name == "" || emailAddr == "" || password == "" {
		logger.Warn().Msg("admin bootstrap env vars not fully set; skipping")
		return nil
	}

	row := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1 LIMIT 1`, emailAddr)
	var existingID string
	if err := row.Scan(&existingID); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check admin user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), users.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = pool.Exec(ctx, `
INSERT INTO users (id, name, email, password_hash, role, verified)
VALUES (gen_random_uuid()::text, $1, $2, $3, 'admin', true)`,
		name, emailAddr, string(hash))
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	// Redact the address in production to keep PII out of the logs.
	if cfg.Environment == "production" {
		logger.Info().Msg("bootstrapped admin user")
	} else {
		logger.Info().Str("email", emailAddr).Msg("bootstrapped admin user")
	}
	return nil
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
