package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/mentorchat/internal/auth"
	"github.com/vovakirdan/mentorchat/internal/config"
	"github.com/vovakirdan/mentorchat/internal/core"
	"github.com/vovakirdan/mentorchat/internal/history"
	"github.com/vovakirdan/mentorchat/internal/store"
	"github.com/vovakirdan/mentorchat/internal/store/postgres"
	"github.com/vovakirdan/mentorchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/mentorchat/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
// Pending migrations are applied before the store is handed out.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	authService := auth.NewService(JWTConfig(cfg), cfg.JWT.Required)
	logger.Info().Bool("jwt_required", authService.Required()).Msg("announce authentication configured")
	hub := core.NewHub(st, logger)
	hist := history.NewService(st, cfg.HistoryMaxLimit)

	gin.SetMode(gin.ReleaseMode)
	server := transporthttp.NewServer(hub, hist, authService, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// JWTConfig converts the configured JWT settings.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	}
}

// OpenStore opens and migrates the configured message store.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		applied, err := postgres.Migrate(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("driver", cfg.Database.Driver).Int("migrations_applied", applied).Msg("database initialized")
		return postgres.New(pool), nil
	case config.DriverSQLite:
		st, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		applied, err := st.Migrate(ctx)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		logger.Info().Str("driver", cfg.Database.Driver).Str("db_path", cfg.Database.Path).Int("migrations_applied", applied).Msg("database initialized")
		return st, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// Run starts the hub and the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
