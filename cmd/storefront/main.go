package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dronefood-storefront/internal/client/orderapi"
	"dronefood-storefront/internal/client/routing"
	"dronefood-storefront/internal/config"
	"dronefood-storefront/internal/db"
	"dronefood-storefront/internal/httpserver"
	"dronefood-storefront/internal/migrate"
	"dronefood-storefront/internal/repository/cartstore"
	"dronefood-storefront/internal/service/identity"
	"dronefood-storefront/internal/tracking"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	logger = logger.Named("storefront")
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	var (
		pool  *pgxpool.Pool
		carts cartstore.Repository
	)
	if cfg.DBConnString == "" {
		logger.Warn("DB_DSN not set, carts are kept in memory")
		carts = cartstore.NewMemory()
	} else {
		pool, err = db.Connect(ctx, cfg.DBConnString, logger)
		if err != nil {
			logger.Fatal("connect to db", zap.Error(err))
		}
		defer pool.Close()
		if err := migrate.Apply(ctx, pool, logger); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
		carts = cartstore.NewPostgres(pool, logger)
	}

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}
	srv, err := httpserver.New(cfg.HTTPAddr, logger, pool, httpserver.Deps{
		Carts:        carts,
		CartDebounce: cfg.CartSaveDebounce,
		Verifier:     newVerifier(cfg.JWTSecret, logger),
		Orders:       orderapi.New(cfg.OrderAPIBase, httpClient),
		Routes:       routing.NewOSRM(cfg.RoutingAPIBase, cfg.RoutingProfile, httpClient),
		Tracking: tracking.Options{
			Tick:             cfg.SimulationTick,
			ConfirmProximity: cfg.ConfirmProximity,
			FetchTimeout:     cfg.FetchTimeout,
		},
		PollInterval: cfg.StatusPollInterval,
		PollDeadline: cfg.StatusPollDeadline,
		CORSOrigins:  cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

func newVerifier(secret string, logger *zap.Logger) *identity.Verifier {
	if secret == "" {
		logger.Warn("JWT_SECRET not set, bearer token signatures are not verified")
	}
	return identity.NewVerifier(secret)
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}
