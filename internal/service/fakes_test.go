package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"holdings_tracker/internal/entity"
)

func ptr[T any](v T) *T { return &v }

func pair(base, price string, volume float64) entity.PairData {
	return entity.PairData{
		ChainID:     "solana",
		PairAddress: base + "-" + price,
		BaseToken:   entity.DEXToken{Address: base, Symbol: base},
		PriceUsd:    price,
		Volume:      entity.PairVolume{H24: volume},
	}
}

type fakeSolanaClient struct {
	mu       sync.Mutex
	calls    int
	errs     []error // returned in order, then accounts
	accounts []entity.TokenBalance
}

func (f *fakeSolanaClient) GetParsedTokenAccounts(_ context.Context, _ string) ([]entity.TokenBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	return f.accounts, nil
}

type fakeDEXClient struct {
	mu      sync.Mutex
	batches [][]string
	starts  []time.Time
	fail    map[string]bool // first address of a batch -> fail
	pairs   map[string][]entity.PairData
	delay   time.Duration

	active    int
	maxActive int
}

func (f *fakeDEXClient) GetTokenPairsByAddresses(ctx context.Context, addrs []string) ([]entity.PairData, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), addrs...))
	f.starts = append(f.starts, time.Now())
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail[addrs[0]] {
		return nil, entity.ErrUpstreamUnavailable
	}
	var out []entity.PairData
	for _, a := range addrs {
		out = append(out, f.pairs[a]...)
	}
	return out, nil
}

type fakeScoreClient struct {
	mu      sync.Mutex
	batches [][]string
	scores  map[string]float64
	fail    map[string]bool // first address of a batch -> fail
}

func (f *fakeScoreClient) GetTokenScores(_ context.Context, addrs []string) ([]entity.ScoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), addrs...))
	if f.fail[addrs[0]] {
		return nil, entity.ErrUpstreamUnavailable
	}
	out := make([]entity.ScoreResult, 0, len(addrs))
	for _, a := range addrs {
		if s, ok := f.scores[a]; ok {
			out = append(out, entity.ScoreResult{Address: a, TokenData: &entity.ScoreTokenData{Score: ptr(s)}})
			continue
		}
		out = append(out, entity.ScoreResult{Address: a, Error: "token not found"})
	}
	return out, nil
}

func (f *fakeScoreClient) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type failingScoreStore struct{}

func (failingScoreStore) Load(context.Context, []string) (map[string]float64, error) {
	return nil, entity.ErrCacheUnavailable
}

func (failingScoreStore) Save(context.Context, map[string]float64) error {
	return entity.ErrCacheUnavailable
}

type failingHoldingsCache struct{}

func (failingHoldingsCache) Load(context.Context) (*entity.Snapshot, error) {
	return nil, entity.ErrCacheUnavailable
}

func (failingHoldingsCache) Store(context.Context, *entity.Snapshot) error {
	return entity.ErrCacheUnavailable
}

func (failingHoldingsCache) Ping(context.Context) error { return errors.New("down") }

type fakeBalanceFetcher struct {
	mu       sync.Mutex
	calls    int
	balances []entity.TokenBalance
	err      error
	block    chan struct{} // when set, calls wait for it to close
}

func (f *fakeBalanceFetcher) GetBalances(ctx context.Context, _ string) ([]entity.TokenBalance, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances, f.err
}

func (f *fakeBalanceFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBalanceFetcher) set(balances []entity.TokenBalance, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances, f.err = balances, err
}

type fakeMarketData struct {
	pairs []entity.PairData
	err   error
}

func (f *fakeMarketData) GetMarketData(context.Context, []string) ([]entity.PairData, error) {
	return f.pairs, f.err
}

type fakeScoreFetcher struct {
	scores map[string]float64
	err    error
}

func (f *fakeScoreFetcher) GetScores(context.Context, []string) (map[string]float64, error) {
	return f.scores, f.err
}
