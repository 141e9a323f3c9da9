package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"invest-service/internal/app"
	"invest-service/internal/config"
	"invest-service/internal/database"
	grpcServer "invest-service/internal/grpc"
	"invest-service/internal/handlers"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()
	config.ConfigureLogging(cfg)

	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET is required")
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	a, err := app.New(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer a.Close()

	if err := database.Migrate(a.DB); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start gRPC health server
	go func() {
		if err := grpcServer.StartGRPCServer(ctx, cfg.GRPCPort, grpcServer.NewHealthServer(a.DB)); err != nil {
			logrus.WithError(err).Error("gRPC server stopped")
		}
	}()

	router := handlers.NewRouter(a.Handler(), cfg.JWTSecret, a.Metrics.Handler())
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown failed")
	}
}
