package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"holdings_tracker/internal/client"
	"holdings_tracker/internal/pkg/retry"
	"holdings_tracker/internal/pkg/utils"
	"holdings_tracker/internal/port"
	"holdings_tracker/pkg/metrics"

	"go.uber.org/zap"
)

const storeSaveTimeout = 5 * time.Second

// Trust scores outside this range are discarded before they reach the store.
const (
	minTrustScore = 0.0
	maxTrustScore = 100.0
)

// scoreServiceImpl implements port.ScoreFetcher. Scores are looked up in the store first and
// only unknown addresses are sent to the score API.
type scoreServiceImpl struct {
	scoreClient client.ScoreClient
	store       port.ScoreStore
	batchSize   int
	batchDelay  time.Duration
	policy      retry.Policy
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewScoreService creates a ScoreFetcher. policy.Cooldown is the pause after a failed batch.
func NewScoreService(
	scoreClient client.ScoreClient,
	store port.ScoreStore,
	batchSize int,
	batchDelay time.Duration,
	policy retry.Policy,
	m *metrics.Metrics,
	logger *zap.Logger,
) port.ScoreFetcher {
	return &scoreServiceImpl{
		scoreClient: scoreClient,
		store:       store,
		batchSize:   batchSize,
		batchDelay:  batchDelay,
		policy:      policy,
		metrics:     m,
		logger:      logger.Named("ScoreService"),
	}
}

// GetScores returns the stored scores for tokenAddresses plus whatever the API could add.
// Store errors always degrade to the scores already known. API errors do too under a
// returnPartial policy; under a propagate policy the first failed batch ends the call with
// its error, after the scores fetched so far have been saved.
func (s *scoreServiceImpl) GetScores(ctx context.Context, tokenAddresses []string) (map[string]float64, error) {
	addresses := utils.CompactStrings(tokenAddresses)
	if len(addresses) == 0 {
		return map[string]float64{}, nil
	}

	cached, err := s.store.Load(ctx, addresses)
	if err != nil {
		s.metrics.CacheErrors.WithLabelValues("score_load").Inc()
		s.logger.Warn("Failed to load stored scores, treating store as empty", zap.Error(err))
		cached = nil
	}

	scores := make(map[string]float64, len(addresses))
	for addr, score := range cached {
		scores[addr] = score
	}

	uncached := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if _, ok := scores[addr]; !ok {
			uncached = append(uncached, addr)
		}
	}
	s.metrics.ScoreCacheHits.Add(float64(len(addresses) - len(uncached)))
	s.metrics.ScoreCacheMisses.Add(float64(len(uncached)))

	if len(uncached) == 0 {
		s.metrics.ScoreStoreSize.Set(float64(len(scores)))
		return scores, nil
	}

	fresh, fetchErr := s.fetchScores(ctx, uncached)
	for addr, score := range fresh {
		scores[addr] = score
	}

	if len(fresh) > 0 {
		// Scores already paid for are kept even when the caller has given up.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeSaveTimeout)
		err := s.store.Save(saveCtx, fresh)
		cancel()
		if err != nil {
			s.metrics.CacheErrors.WithLabelValues("score_save").Inc()
			s.logger.Error("Failed to persist new scores", zap.Int("count", len(fresh)), zap.Error(err))
		}
	}

	s.metrics.ScoreStoreSize.Set(float64(len(scores)))
	if fetchErr != nil {
		return nil, fetchErr
	}
	s.logger.Info("Trust scores resolved",
		zap.Int("requested", len(addresses)),
		zap.Int("fromStore", len(addresses)-len(uncached)),
		zap.Int("fetched", len(fresh)),
		zap.Int("unscored", len(addresses)-len(scores)))
	return scores, nil
}

// fetchScores walks the uncached addresses batch by batch. Batches run one after another:
// successful batches are followed by batchDelay, failed ones by the policy cooldown.
// Under a propagate policy the first failed batch stops the walk.
func (s *scoreServiceImpl) fetchScores(ctx context.Context, addresses []string) (map[string]float64, error) {
	fresh := make(map[string]float64)
	batches := utils.BatchStrings(addresses, s.batchSize)

	for i, batch := range batches {
		if ctx.Err() != nil {
			s.logger.Warn("Score fetching interrupted",
				zap.Int("completedBatches", i),
				zap.Int("totalBatches", len(batches)),
				zap.Error(ctx.Err()))
			break
		}

		s.logger.Debug("Fetching score batch", zap.Int("batch", i+1), zap.Int("batchSize", len(batch)))

		err := s.policy.Do(ctx, func(ctx context.Context) error {
			start := time.Now()
			results, err := s.scoreClient.GetTokenScores(ctx, batch)
			s.metrics.UpstreamLatency.WithLabelValues(metrics.SourceScoreAPI).Observe(time.Since(start).Seconds())
			if err != nil {
				s.metrics.UpstreamRequests.WithLabelValues(metrics.SourceScoreAPI, metrics.OutcomeError).Inc()
				return err
			}
			s.metrics.UpstreamRequests.WithLabelValues(metrics.SourceScoreAPI, metrics.OutcomeSuccess).Inc()

			for _, r := range results {
				if r.Address == "" || r.TokenData == nil || r.TokenData.Score == nil {
					continue
				}
				score := *r.TokenData.Score
				if !validTrustScore(score) {
					s.logger.Warn("Discarding out of range trust score",
						zap.String("address", r.Address),
						zap.Float64("score", score))
					continue
				}
				fresh[r.Address] = score
			}
			return nil
		})
		if err != nil {
			s.logger.Warn("Failed to fetch score batch",
				zap.Int("batch", i+1),
				zap.Strings("tokenAddresses", batch),
				zap.Error(err))
			if s.policy.Propagates() {
				return fresh, fmt.Errorf("score batch %d: %w", i+1, err)
			}
			continue
		}

		if i < len(batches)-1 {
			_ = retry.Sleep(ctx, s.batchDelay)
		}
	}
	return fresh, nil
}

func validTrustScore(score float64) bool {
	return !math.IsNaN(score) && score >= minTrustScore && score <= maxTrustScore
}
