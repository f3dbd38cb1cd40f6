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

	"holdings_tracker/internal/app/provider"
	"holdings_tracker/internal/config"
	"holdings_tracker/internal/infrastructure/restapi"
	"holdings_tracker/internal/pkg/logger"
	"holdings_tracker/internal/pkg/utils"
	"holdings_tracker/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		logrus.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync() // flushes buffer, if any
	logger.InstallSlog(zapLogger)

	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	m := metrics.New(prometheus.NewRegistry())
	m.MustRegisterRuntime()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
	pipeline, err := provider.BuildPipeline(startupCtx, cfg, m, zapLogger)
	cancelStartup()
	if err != nil {
		zapLogger.Fatal("Failed to build refresh pipeline", zap.Error(err))
	}
	defer pipeline.Close()

	if gin.Mode() == gin.DebugMode && cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := restapi.NewHoldingsHandler(pipeline.Orchestrator, zapLogger)
	router := restapi.SetupRouter(handler, m, cfg.Server, zapLogger)

	// Warm the cache so the first request does not wait for a full refresh.
	pipeline.Orchestrator.TriggerBackgroundRefresh()

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  config.Seconds(cfg.Server.ReadTimeout),
		WriteTimeout: config.Seconds(cfg.Server.WriteTimeout),
		IdleTimeout:  config.Seconds(cfg.Server.IdleTimeout),
	}

	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on port %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Waiting for in-flight refreshes")
	pipeline.Orchestrator.Wait()
	zapLogger.Info("Server exiting")
}
