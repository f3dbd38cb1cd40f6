package provider

import (
	"context"

	"holdings_tracker/internal/client"
	"holdings_tracker/internal/config"
	"holdings_tracker/internal/pkg/retry"
	"holdings_tracker/internal/service"
	"holdings_tracker/pkg/metrics"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// Pipeline is the fully wired refresh pipeline.
type Pipeline struct {
	Orchestrator *service.RefreshOrchestrator
	Cache        *service.SnapshotCache
	conns        *Connections
}

// Close releases the backend connections. Call it after the orchestrator has drained.
func (p *Pipeline) Close() {
	p.conns.Close()
}

// RetryPolicies returns the per-dependency retry configuration.
func RetryPolicies(cfg *config.Config) (balances, marketData, scores retry.Policy) {
	balances = retry.Policy{
		MaxAttempts:  cfg.Solana.MaxAttempts,
		Backoff:      config.Millis(cfg.Solana.RetryDelayMillis),
		OnExhaustion: retry.Propagate,
	}
	marketData = retry.Policy{
		MaxAttempts:  1,
		OnExhaustion: retry.ReturnPartial,
	}
	scores = retry.Policy{
		MaxAttempts:  1,
		Cooldown:     config.Millis(cfg.ScoreSvc.FailureBackoffMillis),
		OnExhaustion: retry.ReturnPartial,
	}
	return balances, marketData, scores
}

// BuildPipeline creates clients, backends and services from cfg.
func BuildPipeline(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) (*Pipeline, error) {
	conns, err := OpenConnections(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	holdingsCache, err := NewHoldingsCache(cfg, conns)
	if err != nil {
		conns.Close()
		return nil, err
	}
	scoreStore, err := NewScoreStore(cfg, conns)
	if err != nil {
		conns.Close()
		return nil, err
	}

	solanaClient := client.NewSolanaClient(
		rpc.New(cfg.Solana.RPCEndpoint),
		cfg.Solana.Commitment,
		config.Millis(cfg.Solana.RequestTimeoutMillis),
		logger,
	)
	dexScreenerClient := client.NewDEXScreenerClient(
		cfg.DEXScreener.BaseURL,
		cfg.DEXScreener.APIKey,
		config.Millis(cfg.DEXScreener.RequestTimeoutMillis),
		logger,
		cfg.DEXScreener.MaxTokensPerBatchRequest,
	)
	scoreClient := client.NewScoreClient(
		cfg.ScoreSvc.BaseURL,
		cfg.ScoreSvc.APIKey,
		config.Millis(cfg.ScoreSvc.RequestTimeoutMillis),
		logger,
		cfg.ScoreSvc.MaxTokensPerBatchRequest,
	)

	balancePolicy, marketPolicy, scorePolicy := RetryPolicies(cfg)

	balanceSvc := service.NewBalanceService(solanaClient, balancePolicy, m, logger)
	marketSvc := service.NewMarketDataService(dexScreenerClient, cfg.DEXScreener, marketPolicy, m, logger)
	scoreSvc := service.NewScoreService(
		scoreClient,
		scoreStore,
		cfg.ScoreSvc.MaxTokensPerBatchRequest,
		config.Millis(cfg.ScoreSvc.BatchDelayMillis),
		scorePolicy,
		m,
		logger,
	)
	calculator := service.NewHoldingsCalculator(scoreSvc, logger)
	snapshotCache := service.NewSnapshotCache(holdingsCache, m, logger)

	orchestrator := service.NewRefreshOrchestrator(
		cfg.Wallet.Address,
		balanceSvc,
		marketSvc,
		calculator,
		snapshotCache,
		config.Seconds(cfg.Refresh.TimeoutSeconds),
		config.Seconds(cfg.Refresh.BackgroundDeadlineSeconds),
		m,
		logger,
	)

	logger.Info("Refresh pipeline initialized",
		zap.String("wallet", cfg.Wallet.Address),
		zap.String("cacheBackend", cfg.Cache.Backend),
		zap.String("scoreStoreBackend", cfg.ScoreStore.Backend))

	return &Pipeline{Orchestrator: orchestrator, Cache: snapshotCache, conns: conns}, nil
}
