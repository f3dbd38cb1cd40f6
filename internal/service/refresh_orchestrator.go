package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"
	"holdings_tracker/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

var _ port.HoldingsService = (*RefreshOrchestrator)(nil)

// RefreshOrchestrator decides between serving the cache and running a refresh cycle.
// Refresh cycles run on a detached context bounded by backgroundDeadline, so a caller
// that stops waiting never cancels work other callers share.
type RefreshOrchestrator struct {
	wallet             string
	balances           port.BalanceFetcher
	marketData         port.MarketDataFetcher
	calculator         *HoldingsCalculator
	cache              *SnapshotCache
	timeout            time.Duration
	backgroundDeadline time.Duration

	group singleflight.Group
	// mu guards running and gen. Each cycle gets its own singleflight key, so a
	// launch either joins the cycle that is running or starts a new one.
	mu      sync.Mutex
	running bool
	gen     uint64
	wg      sync.WaitGroup

	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewRefreshOrchestrator(
	wallet string,
	balances port.BalanceFetcher,
	marketData port.MarketDataFetcher,
	calculator *HoldingsCalculator,
	cache *SnapshotCache,
	timeout time.Duration,
	backgroundDeadline time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RefreshOrchestrator {
	if backgroundDeadline < timeout {
		backgroundDeadline = timeout
	}
	return &RefreshOrchestrator{
		wallet:             wallet,
		balances:           balances,
		marketData:         marketData,
		calculator:         calculator,
		cache:              cache,
		timeout:            timeout,
		backgroundDeadline: backgroundDeadline,
		metrics:            m,
		logger:             logger.Named("RefreshOrchestrator"),
	}
}

// GetHoldings serves a fresh snapshot from cache or refreshes. When the refresh fails,
// any cached snapshot is served regardless of its age.
func (o *RefreshOrchestrator) GetHoldings(ctx context.Context) (*entity.Snapshot, error) {
	snap := o.cache.Get(ctx)
	if snap != nil && !o.cache.Stale(snap) {
		o.metrics.CacheLookups.WithLabelValues("fresh").Inc()
		return snap, nil
	}
	if snap == nil {
		o.metrics.CacheLookups.WithLabelValues("miss").Inc()
	} else {
		o.metrics.CacheLookups.WithLabelValues("stale").Inc()
	}

	fresh, err := o.Refresh(ctx)
	if err == nil {
		return fresh, nil
	}

	if fallback := o.cache.Get(ctx); fallback != nil {
		o.logger.Warn("Refresh failed, serving cached holdings",
			zap.Time("lastUpdated", fallback.LastUpdated),
			zap.Error(err))
		return fallback, nil
	}
	return nil, err
}

// GetHoldingsStaleWhileRevalidate serves the cache as is and starts a background refresh
// when it is stale or empty. The flag reports whether this call started that refresh.
func (o *RefreshOrchestrator) GetHoldingsStaleWhileRevalidate(ctx context.Context) (*entity.Snapshot, bool, error) {
	snap := o.cache.Get(ctx)
	if snap == nil {
		o.metrics.CacheLookups.WithLabelValues("miss").Inc()
		started := o.TriggerBackgroundRefresh()
		return nil, started, entity.ErrNoDataAvailable
	}
	if o.cache.Stale(snap) {
		o.metrics.CacheLookups.WithLabelValues("stale").Inc()
		started := o.TriggerBackgroundRefresh()
		return snap, started, nil
	}
	o.metrics.CacheLookups.WithLabelValues("fresh").Inc()
	return snap, false, nil
}

// Refresh runs one refresh cycle, or joins the one already running, and waits for it
// or for ctx.
func (o *RefreshOrchestrator) Refresh(ctx context.Context) (*entity.Snapshot, error) {
	res, _ := o.launch()
	select {
	case r := <-res:
		return resultSnapshot(r)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RefreshWithTimeout is Refresh bounded by the configured timeout. When the timeout wins the
// cycle keeps running and a late success still lands in the cache.
func (o *RefreshOrchestrator) RefreshWithTimeout(ctx context.Context) (*entity.Snapshot, error) {
	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	res, _ := o.launch()
	select {
	case r := <-res:
		return resultSnapshot(r)
	case <-timer.C:
		o.metrics.RefreshTotal.WithLabelValues(metrics.OutcomeTimeout).Inc()
		o.logger.Warn("Refresh did not finish in time, continuing in background", zap.Duration("timeout", o.timeout))
		return nil, fmt.Errorf("%w after %s", entity.ErrRefreshTimeout, o.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TriggerBackgroundRefresh starts a refresh without waiting. It returns false when a refresh
// was already running, in which case nothing new is started.
func (o *RefreshOrchestrator) TriggerBackgroundRefresh() bool {
	_, started := o.launch()
	return started
}

func (o *RefreshOrchestrator) CachePing(ctx context.Context) error {
	return o.cache.Ping(ctx)
}

// Wait blocks until every refresh started so far has finished.
func (o *RefreshOrchestrator) Wait() {
	o.wg.Wait()
}

// Collect runs the fetch and calculate steps without touching the cache.
func (o *RefreshOrchestrator) Collect(ctx context.Context) ([]entity.TokenHolding, error) {
	balances, err := o.balances.GetBalances(ctx, o.wallet)
	if err != nil {
		return nil, fmt.Errorf("fetch balances: %w", err)
	}
	if len(balances) == 0 {
		return nil, entity.ErrNoTokens
	}

	mints := make([]string, 0, len(balances))
	for _, b := range balances {
		mints = append(mints, b.Mint)
	}

	pairs, err := o.marketData.GetMarketData(ctx, mints)
	if err != nil {
		return nil, fmt.Errorf("fetch market data: %w", err)
	}
	if len(pairs) == 0 {
		return nil, entity.ErrNoMarketData
	}

	return o.calculator.Compute(ctx, balances, pairs, o.wallet)
}

// launch joins the running refresh cycle or starts a new one, and reports which. The
// returned channel receives the cycle's result.
func (o *RefreshOrchestrator) launch() (<-chan singleflight.Result, bool) {
	o.wg.Add(1)

	// The cycle clears running under mu before its key is released, so holding mu
	// across DoChan means a running cycle is always joined, never restarted.
	o.mu.Lock()
	started := !o.running
	if started {
		o.running = true
		o.gen++
	}
	shared := o.group.DoChan(fmt.Sprintf("%s-%d", refreshKey, o.gen), func() (any, error) {
		defer func() {
			o.mu.Lock()
			o.running = false
			o.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), o.backgroundDeadline)
		defer cancel()
		return o.run(ctx)
	})
	o.mu.Unlock()

	out := make(chan singleflight.Result, 1)
	go func() {
		defer o.wg.Done()
		out <- <-shared
	}()
	return out, started
}

func (o *RefreshOrchestrator) run(ctx context.Context) (*entity.Snapshot, error) {
	refreshID := uuid.NewString()
	logger := o.logger.With(zap.String("refreshID", refreshID), zap.String("wallet", o.wallet))
	start := time.Now()
	logger.Info("Refresh started")

	holdings, err := o.Collect(ctx)
	o.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, entity.ErrNoDataAvailable) {
			outcome = metrics.OutcomeNoData
		}
		o.metrics.RefreshTotal.WithLabelValues(outcome).Inc()
		logger.Error("Refresh failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, err
	}

	snap := o.cache.Set(ctx, holdings)

	summary := Summarize(snap.Holdings)
	o.metrics.RefreshTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	o.metrics.LastRefreshSuccess.SetToCurrentTime()
	o.metrics.HoldingsCount.Set(float64(summary.TotalHoldings))
	o.metrics.PortfolioValueUSD.Set(summary.TotalValue)

	logger.Info("Refresh completed",
		zap.Int("holdings", summary.TotalHoldings),
		zap.Float64("totalValueUSD", summary.TotalValue),
		zap.Duration("elapsed", time.Since(start)))
	return snap, nil
}

func resultSnapshot(res singleflight.Result) (*entity.Snapshot, error) {
	if res.Err != nil {
		return nil, res.Err
	}
	snap, _ := res.Val.(*entity.Snapshot)
	return snap, nil
}
