// @title           Property site API
// @version         1.0
// @description     Listing content and media manifest management.
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bulatminnakhmetov/property-site/internal/app"
	"github.com/bulatminnakhmetov/property-site/internal/config"
	"github.com/bulatminnakhmetov/property-site/internal/logger"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Development, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()
	sugar := zl.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.Open(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("Failed to open backends", "error", err)
	}
	defer backends.Close()

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: app.NewRouter(cfg, backends, zl),
	}

	go func() {
		sugar.Infow("Server is starting",
			"port", cfg.Server.Port,
			"storage", cfg.StorageBackend,
			"store", cfg.StoreBackend,
			"auth", cfg.Auth.Provider,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("Could not listen", "port", cfg.Server.Port, "error", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("Server forced to shutdown", "error", err)
		return
	}
	sugar.Info("Server gracefully stopped")
}
