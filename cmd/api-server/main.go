package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/doctor-appointment-scheduling/internal/api"
	"github.com/hackgods/doctor-appointment-scheduling/internal/auth"
	"github.com/hackgods/doctor-appointment-scheduling/internal/availability"
	"github.com/hackgods/doctor-appointment-scheduling/internal/booking"
	"github.com/hackgods/doctor-appointment-scheduling/internal/config"
	"github.com/hackgods/doctor-appointment-scheduling/internal/db"
	"github.com/hackgods/doctor-appointment-scheduling/internal/lock"
	redisclient "github.com/hackgods/doctor-appointment-scheduling/internal/redis"
	"github.com/hackgods/doctor-appointment-scheduling/internal/schedule"
	"github.com/hackgods/doctor-appointment-scheduling/internal/user"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "api-server",
		Short:         "Doctor appointment scheduling API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "api-server:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return errors.New("POSTGRES_DSN is required for migrate")
			}
			logger := newLogger(cfg)

			pool, err := connectAndMigrate(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			pool.Close()
			return nil
		},
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
	if cfg.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
			With().Timestamp().Str("service", "api-server").Logger()
	}
	return logger.Level(level)
}

func connectAndMigrate(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.Connect(pgCtx, db.PoolOptions{
		DSN:      cfg.PostgresDSN,
		MaxConns: int32(cfg.PostgresMaxConn),
		AppName:  "api-server",
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to Postgres")

	applied, err := db.NewMigrator(pool, db.Migrations()).Up(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Int("applied", applied).Msg("migrations up to date")
	return pool, nil
}

type stores struct {
	windows   availability.Repository
	schedules schedule.Repository
	users     user.Repository
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.StorageDriver).
		Str("lock", cfg.LockDriver).
		Msg("api-server starting up")

	checkers := make(map[string]api.Checker)

	var st stores
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := connectAndMigrate(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pool.Close()

		users, err := user.NewCachedRepository(user.NewPgRepository(pool), cfg.UserCacheSize)
		if err != nil {
			return err
		}
		st = stores{
			windows:   availability.NewPgRepository(pool),
			schedules: schedule.NewPgRepository(pool),
			users:     users,
		}
		checkers["postgres"] = pool.Ping
	default:
		logger.Warn().Msg("using in-memory storage, data is lost on restart")
		st = stores{
			windows:   availability.NewMemoryRepository(),
			schedules: schedule.NewMemoryRepository(),
			users:     user.NewMemoryRepository(),
		}
	}

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.LockDriver == config.LockRedis {
		rdb, err := redisclient.Connect(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")

		locker = lock.NewRedisLocker(rdb, cfg.LockTTL, logger)
		checkers["redis"] = redisclient.Ping(rdb)
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	availSvc := availability.NewService(st.windows, logger)
	bookingSvc := booking.NewService(st.windows, st.schedules, locker, logger)
	userSvc := user.NewService(st.users, tokens, availSvc, logger)

	handler := api.NewRouter(api.RouterConfig{
		Users:        userSvc,
		Availability: availSvc,
		Booking:      bookingSvc,
		Tokens:       tokens,
		Checkers:     checkers,
		Logger:       logger,
		RateLimitRPS: cfg.RateLimitRPS,
		RateBurst:    cfg.RateLimitBurst,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info().Msg("api-server stopped")
	return nil
}
