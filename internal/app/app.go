package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/quicklink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/quicklink/internal/config"
	"github.com/vadimbarashkov/quicklink/internal/entity"
	"github.com/vadimbarashkov/quicklink/internal/usecase"
	"github.com/vadimbarashkov/quicklink/pkg/evallog"
	"github.com/vadimbarashkov/quicklink/pkg/postgres"
	"github.com/vadimbarashkov/quicklink/pkg/sqlite"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/quicklink/internal/adapter/delivery/http"
	pgrepo "github.com/vadimbarashkov/quicklink/internal/adapter/repository/postgres"
	sqliterepo "github.com/vadimbarashkov/quicklink/internal/adapter/repository/sqlite"
)

const shutdownTimeout = 10 * time.Second

type urlRepository interface {
	Save(ctx context.Context, url *entity.URL) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveAll(ctx context.Context) ([]*entity.URL, error)
	MarkInactive(ctx context.Context, id string) error
	IncrementClicks(ctx context.Context, id string) (int64, error)
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := newLogger(cfg)

	if cfg.EvalLog.Enabled {
		h := newEvalLogHandler(cfg, logger.Logger.Handler())
		logger.Logger = slog.New(h)

		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.EvalLog.Timeout)
			defer cancel()

			_ = h.Close(closeCtx)
		}()
	}

	urlRepo, closeStorage, err := openStorage(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Log(ctx, evallog.LevelFatalSlog, "failed to open storage", slog.Any("err", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeStorage()

	urlUseCase := usecase.New(
		urlRepo,
		usecase.WithShortCodeLength(cfg.Shortener.ShortCodeLength),
		usecase.WithDefaultValidity(cfg.Shortener.DefaultValidityMinutes),
		usecase.WithMaxRetries(cfg.Shortener.MaxRetries),
		usecase.WithWorkers(cfg.Shortener.Workers),
		usecase.WithLogger(logger.Logger),
	)

	router := delivery.NewRouter(
		logger,
		urlUseCase,
		delivery.WithMaxBatchSize(cfg.Shortener.MaxBatchSize),
	)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("package", "route"),
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage.Driver),
		)

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server", slog.String("package", "route"))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}

func newLogger(cfg *config.Config) *httplog.Logger {
	return httplog.NewLogger("quicklink", httplog.Options{
		JSON:             cfg.Env == config.EnvProd,
		Concise:          cfg.Env != config.EnvProd,
		LogLevel:         parseLevel(cfg.Log.Level, slog.LevelInfo),
		MessageFieldName: "message",
		QuietDownRoutes:  []string{"/api/ping"},
		QuietDownPeriod:  10 * time.Second,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

// parseLevel accepts slog level names plus "fatal".
func parseLevel(s string, fallback slog.Level) slog.Level {
	if strings.EqualFold(s, evallog.LevelFatal) {
		return evallog.LevelFatalSlog
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return fallback
	}

	return level
}

func newEvalLogHandler(cfg *config.Config, next slog.Handler) *evallog.Handler {
	creds := cfg.EvalLog.Credentials

	client := evallog.NewClient(
		cfg.EvalLog.LogsURL,
		cfg.EvalLog.AuthURL,
		evallog.Credentials{
			Email:        creds.Email,
			Name:         creds.Name,
			RollNo:       creds.RollNo,
			AccessCode:   creds.AccessCode,
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
		},
		cfg.EvalLog.Timeout,
	)

	return evallog.NewHandler(next, client, &evallog.HandlerOptions{
		Level:      parseLevel(cfg.EvalLog.MinLevel, slog.LevelInfo),
		BufferSize: cfg.EvalLog.BufferSize,
		Stack:      evallog.StackBackend,
	})
}

// openStorage connects the configured storage driver and prepares its schema.
// The returned function releases the underlying connection.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (urlRepository, func() error, error) {
	logger = logger.With(slog.String("package", "db"), slog.String("driver", cfg.Storage.Driver))

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := postgres.New(
			ctx,
			cfg.Postgres.DSN(),
			postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		version, err := postgres.RunMigrations(cfg.Postgres.MigrationsPath, cfg.Postgres.DSN())
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		logger.Info("storage ready", slog.Uint64("schema_version", uint64(version)))

		return pgrepo.NewURLRepository(db), db.Close, nil
	case config.StorageSQLite:
		db, err := sqlite.New(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}

		repo := sqliterepo.NewURLRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to create schema: %w", err)
		}

		logger.Info("storage ready", slog.String("path", cfg.Storage.SQLitePath))

		return repo, db.Close, nil
	case config.StorageMemory:
		logger.Warn("records are kept in memory and lost on restart")

		return memory.NewURLRepository(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
