package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/tokenguard"
	"github.com/MrEthical07/tokenguard/httpapi"
	"github.com/MrEthical07/tokenguard/internal/configloader"
	"github.com/MrEthical07/tokenguard/internal/logger"
	promexport "github.com/MrEthical07/tokenguard/metrics/export/prometheus"
	"github.com/MrEthical07/tokenguard/userstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var embeddedRedis bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, root.configPath, embeddedRedis)
		},
	}
	cmd.Flags().BoolVar(&embeddedRedis, "embedded-redis", false, "run an in-process Redis (development only)")
	return cmd
}

func runServe(ctx context.Context, configPath string, embeddedRedis bool) error {
	cfg, err := configloader.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	rdb, closeRedis, err := openRedis(ctx, cfg.Redis, embeddedRedis)
	if err != nil {
		return err
	}
	defer closeRedis()

	users, closeUsers, err := openUsers(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeUsers()

	b := tokenguard.New().
		WithConfig(cfg.Auth).
		WithUserProvider(users).
		WithLogger(log.Zap())
	if rdb != nil {
		b = b.WithRedis(rdb)
	}
	if cfg.Auth.Audit.Enabled {
		b = b.WithAuditSink(tokenguard.NewZapSink(log.Zap()))
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	var metrics http.Handler
	if cfg.Auth.Metrics.Enabled {
		metrics = promexport.Handler(engine)
	}
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewRouter(engine, httpapi.Options{
			CORSOrigins:  cfg.Server.CORSOrigins,
			TrustProxy:   cfg.Server.TrustProxy,
			BearerPrefix: cfg.Auth.Security.BearerPrefix,
			Logger:       log,
			Metrics:      metrics,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("store", string(engine.StoreBackend())),
			zap.String("version", version),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openUsers prefers Postgres when a DSN is configured.
func openUsers(ctx context.Context, cfg *configloader.Config) (tokenguard.UserProvider, func(), error) {
	if cfg.Postgres.DSN != "" {
		pool, err := userstore.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, func() {}, err
		}
		return userstore.NewPostgres(pool), pool.Close, nil
	}
	users, err := userstore.FromSeed(cfg.Users)
	if err != nil {
		return nil, func() {}, err
	}
	return users, func() {}, nil
}
