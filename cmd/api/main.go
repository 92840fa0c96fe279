package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/forumx/backend/internal/auth"
	"github.com/forumx/backend/internal/config"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/logging"
	"github.com/forumx/backend/internal/payments"
	"github.com/forumx/backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Production(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Database, logger.Named("database"))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	var gateway payments.Gateway
	if cfg.Payments.StripeSecretKey != "" {
		gateway = payments.NewStripeGateway(cfg.Payments.StripeSecretKey)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, payment endpoints are disabled")
	}

	srv := server.NewServer(cfg, store, newVerifier(cfg, logger), gateway, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("db_driver", cfg.Database.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exiting")
	return nil
}

func newVerifier(cfg *config.Config, logger *zap.Logger) auth.Verifier {
	if cfg.Auth.FirebaseProjectID != "" {
		var opts []auth.FirebaseOption
		if cfg.Auth.CertsURL != "" {
			opts = append(opts, auth.WithCertsURL(cfg.Auth.CertsURL))
		}
		return auth.NewFirebaseVerifier(cfg.Auth.FirebaseProjectID, opts...)
	}
	logger.Warn("FIREBASE_PROJECT_ID not set, accepting HMAC-signed development tokens")
	return auth.NewHMACVerifier(cfg.Auth.HMACSecret)
}
