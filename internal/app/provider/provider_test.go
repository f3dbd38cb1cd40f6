package provider

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"holdings_tracker/internal/config"
	"holdings_tracker/internal/pkg/retry"
	"holdings_tracker/internal/repository"
	"holdings_tracker/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Wallet: config.WalletConfig{Address: config.DefaultWalletAddress},
		Solana: config.SolanaConfig{
			RPCEndpoint:          "http://127.0.0.1:1",
			Commitment:           "confirmed",
			RequestTimeoutMillis: 1000,
			MaxAttempts:          3,
			RetryDelayMillis:     500,
		},
		DEXScreener: config.DEXScreenerConfig{BaseURL: "http://127.0.0.1:1", MaxTokensPerBatchRequest: 30},
		ScoreSvc: config.ScoreServiceConfig{
			BaseURL:                  "http://127.0.0.1:1",
			MaxTokensPerBatchRequest: 20,
			FailureBackoffMillis:     2000,
			ScoreTTLMinutes:          30,
		},
		Cache:      config.CacheConfig{Backend: config.BackendFile, FilePath: filepath.Join(dir, "cache.json")},
		ScoreStore: config.ScoreStoreConfig{Backend: config.BackendMemory},
		Refresh:    config.RefreshConfig{TimeoutSeconds: 30, BackgroundDeadlineSeconds: 120},
	}
}

func TestNewHoldingsCache(t *testing.T) {
	cfg := testConfig(t)
	conns := &Connections{}

	c, err := NewHoldingsCache(cfg, conns)
	require.NoError(t, err)
	assert.IsType(t, &repository.FileHoldingsCache{}, c)

	cfg.Cache.Backend = config.BackendMemory
	c, err = NewHoldingsCache(cfg, conns)
	require.NoError(t, err)
	assert.IsType(t, &repository.MemoryHoldingsCache{}, c)

	cfg.Cache.Backend = config.BackendRedis
	_, err = NewHoldingsCache(cfg, conns)
	assert.Error(t, err, "redis backend without a connection")
}

func TestNewScoreStore(t *testing.T) {
	cfg := testConfig(t)
	conns := &Connections{}

	s, err := NewScoreStore(cfg, conns)
	require.NoError(t, err)
	assert.IsType(t, &repository.MemoryScoreStore{}, s)

	cfg.ScoreStore.Backend = config.BackendFile
	cfg.ScoreStore.FilePath = filepath.Join(t.TempDir(), "scores.json")
	s, err = NewScoreStore(cfg, conns)
	require.NoError(t, err)
	assert.IsType(t, &repository.FileScoreStore{}, s)

	cfg.ScoreStore.Backend = config.BackendPostgres
	_, err = NewScoreStore(cfg, conns)
	assert.Error(t, err)

	cfg.ScoreStore.Backend = "sqlite"
	_, err = NewScoreStore(cfg, conns)
	assert.Error(t, err)
}

func TestRetryPolicies(t *testing.T) {
	balances, market, scores := RetryPolicies(testConfig(t))

	assert.Equal(t, 3, balances.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, balances.Backoff)
	assert.True(t, balances.Propagates())

	assert.Equal(t, 1, market.MaxAttempts)
	assert.Equal(t, retry.ReturnPartial, market.OnExhaustion)

	assert.Equal(t, 1, scores.MaxAttempts)
	assert.Equal(t, 2*time.Second, scores.Cooldown)
	assert.False(t, scores.Propagates())
}

func TestBuildPipeline_LocalBackends(t *testing.T) {
	p, err := BuildPipeline(context.Background(), testConfig(t), metrics.New(nil), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(p.Close)

	require.NotNil(t, p.Orchestrator)
	assert.Nil(t, p.Cache.Get(context.Background()))
	assert.NoError(t, p.Orchestrator.CachePing(context.Background()))
}
