package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"holdings_tracker/internal/app/provider"
	"holdings_tracker/internal/config"
	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/pkg/logger"
	"holdings_tracker/internal/pkg/utils"
	"holdings_tracker/internal/service"
	"holdings_tracker/pkg/metrics"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", utils.GetEnv("CONFIG_PATH", "config/config.yaml"), "Path to the YAML configuration file")
	threshold := flag.Float64("threshold", service.DefaultSignificantThreshold, "Minimum percentage of supply for a holding to be reported")
	write := flag.Bool("write", false, "Store the computed snapshot in the configured cache")
	timeout := flag.Duration("timeout", 2*time.Minute, "Upper bound for the whole run")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Only warnings and errors are logged so the report stays readable.
	zapLogger, err := logger.New("warn", cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	pipeline, err := provider.BuildPipeline(ctx, cfg, metrics.New(nil), zapLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building pipeline: %v\n", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	var snap *entity.Snapshot
	if *write {
		snap, err = pipeline.Orchestrator.Refresh(ctx)
	} else {
		var holdings []entity.TokenHolding
		holdings, err = pipeline.Orchestrator.Collect(ctx)
		snap = &entity.Snapshot{Holdings: holdings, LastUpdated: time.Now().UTC()}
	}
	if err != nil {
		zapLogger.Error("Refresh failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error computing holdings: %v\n", err)
		os.Exit(1)
	}
	pipeline.Orchestrator.Wait()

	if err := writeReport(os.Stdout, cfg.Wallet.Address, snap, *threshold); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}
}
