package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"holdings_tracker/internal/client"
	"holdings_tracker/internal/config"
	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/pkg/retry"
	"holdings_tracker/internal/pkg/utils"
	"holdings_tracker/internal/port"
	"holdings_tracker/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// marketDataServiceImpl implements port.MarketDataFetcher with batched DEX Screener lookups.
type marketDataServiceImpl struct {
	dexscreenerClient client.DEXScreenerClient
	batchSize         int
	maxConcurrent     int
	limiter           *rate.Limiter
	policy            retry.Policy
	metrics           *metrics.Metrics
	logger            *zap.Logger
}

// NewMarketDataService creates a MarketDataFetcher. Batch starts are spaced by cfg.BatchSpacingMillis
// across all callers sharing the service.
func NewMarketDataService(
	dexscreenerClient client.DEXScreenerClient,
	cfg config.DEXScreenerConfig,
	policy retry.Policy,
	m *metrics.Metrics,
	logger *zap.Logger,
) port.MarketDataFetcher {
	limit := rate.Inf
	if cfg.BatchSpacingMillis > 0 {
		limit = rate.Every(config.Millis(cfg.BatchSpacingMillis))
	}
	maxConcurrent := cfg.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	return &marketDataServiceImpl{
		dexscreenerClient: dexscreenerClient,
		batchSize:         cfg.MaxTokensPerBatchRequest,
		maxConcurrent:     maxConcurrent,
		limiter:           rate.NewLimiter(limit, 1),
		policy:            policy,
		metrics:           m,
		logger:            logger.Named("MarketDataService"),
	}
}

// GetMarketData fetches pairs for every address and keeps one pair per base token.
// Under a returnPartial policy a failed batch is logged and contributes nothing. Under a
// propagate policy the first failed batch cancels the rest and its error is returned.
func (s *marketDataServiceImpl) GetMarketData(ctx context.Context, tokenAddresses []string) ([]entity.PairData, error) {
	addresses := utils.CompactStrings(tokenAddresses)
	if len(addresses) == 0 {
		return []entity.PairData{}, nil
	}

	batches := utils.BatchStrings(addresses, s.batchSize)
	results := make([][]entity.PairData, len(batches))
	var failed atomic.Int32

	s.logger.Info("Fetching market data",
		zap.Int("tokenCount", len(addresses)),
		zap.Int("batchCount", len(batches)))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.maxConcurrent)

	for i, batch := range batches {
		eg.Go(func() error {
			if err := s.limiter.Wait(egCtx); err != nil {
				s.logger.Warn("Market data batch not started", zap.Int("batch", i+1), zap.Error(err))
				failed.Add(1)
				return s.batchError(i, err)
			}

			pairs, err := s.fetchBatch(egCtx, batch)
			if err != nil {
				s.logger.Error("Failed to fetch market data batch",
					zap.Int("batch", i+1),
					zap.Strings("tokenAddresses", batch),
					zap.Error(err))
				failed.Add(1)
				return s.batchError(i, err)
			}
			results[i] = pairs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		s.logger.Error("Market data fetch aborted", zap.Int32("failedBatches", failed.Load()), zap.Error(err))
		return nil, err
	}

	merged := make([]entity.PairData, 0, len(addresses))
	for _, pairs := range results {
		merged = append(merged, pairs...)
	}
	deduped := DedupByVolume(merged)

	s.logger.Info("Market data fetched",
		zap.Int("rawPairs", len(merged)),
		zap.Int("uniqueTokens", len(deduped)),
		zap.Int32("failedBatches", failed.Load()))
	return deduped, nil
}

// batchError is what a failed batch hands to the errgroup: nothing when failures are
// tolerated, the wrapped error otherwise.
func (s *marketDataServiceImpl) batchError(i int, err error) error {
	if !s.policy.Propagates() {
		return nil
	}
	return fmt.Errorf("market data batch %d: %w", i+1, err)
}

func (s *marketDataServiceImpl) fetchBatch(ctx context.Context, batch []string) ([]entity.PairData, error) {
	var pairs []entity.PairData
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		res, err := s.dexscreenerClient.GetTokenPairsByAddresses(ctx, batch)
		s.metrics.UpstreamLatency.WithLabelValues(metrics.SourceDEXScreener).Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.UpstreamRequests.WithLabelValues(metrics.SourceDEXScreener, metrics.OutcomeError).Inc()
			return err
		}
		s.metrics.UpstreamRequests.WithLabelValues(metrics.SourceDEXScreener, metrics.OutcomeSuccess).Inc()
		pairs = res
		return nil
	})
	return pairs, err
}

// DedupByVolume keeps, per base token address, the pair with the highest 24h volume.
// On equal volume the earlier pair wins. Output follows the first appearance of each base token.
func DedupByVolume(pairs []entity.PairData) []entity.PairData {
	out := make([]entity.PairData, 0, len(pairs))
	index := make(map[string]int, len(pairs))

	for _, pair := range pairs {
		addr := pair.BaseToken.Address
		if addr == "" {
			continue
		}
		i, ok := index[addr]
		if !ok {
			index[addr] = len(out)
			out = append(out, pair)
			continue
		}
		if pair.Volume.H24 > out[i].Volume.H24 {
			out[i] = pair
		}
	}
	return out
}
