package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"holdings_tracker/internal/client"
	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/pkg/retry"
	"holdings_tracker/internal/port"
	"holdings_tracker/pkg/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// balanceServiceImpl implements port.BalanceFetcher on top of the Solana RPC client.
type balanceServiceImpl struct {
	solana  client.SolanaClient
	policy  retry.Policy
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewBalanceService creates a BalanceFetcher. Failures are retried per policy, then returned
// or, under a returnPartial policy, reported as an empty balance list.
func NewBalanceService(solana client.SolanaClient, policy retry.Policy, m *metrics.Metrics, logger *zap.Logger) port.BalanceFetcher {
	return &balanceServiceImpl{
		solana:  solana,
		policy:  policy,
		metrics: m,
		logger:  logger.Named("BalanceService"),
	}
}

// GetBalances returns one entry per mint with a strictly positive raw amount.
// Token accounts that share a mint are summed.
func (s *balanceServiceImpl) GetBalances(ctx context.Context, walletAddress string) ([]entity.TokenBalance, error) {
	var accounts []entity.TokenBalance
	attempt := 0

	err := s.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		start := time.Now()
		res, err := s.solana.GetParsedTokenAccounts(ctx, walletAddress)
		s.metrics.UpstreamLatency.WithLabelValues(metrics.SourceSolanaRPC).Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.UpstreamRequests.WithLabelValues(metrics.SourceSolanaRPC, metrics.OutcomeError).Inc()
			s.logger.Warn("Token account query failed",
				zap.String("wallet", walletAddress),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if errors.Is(err, entity.ErrInvalidAddress) {
				return backoff.Permanent(err)
			}
			return err
		}
		s.metrics.UpstreamRequests.WithLabelValues(metrics.SourceSolanaRPC, metrics.OutcomeSuccess).Inc()
		accounts = res
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to fetch token balances",
			zap.String("wallet", walletAddress),
			zap.Int("attempts", attempt),
			zap.Error(err))
		if errors.Is(err, entity.ErrInvalidAddress) {
			return nil, err
		}
		if !s.policy.Propagates() {
			return []entity.TokenBalance{}, nil
		}
		if errors.Is(err, entity.ErrUpstreamUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: fetch balances: %v", entity.ErrUpstreamUnavailable, err)
	}

	balances := AggregateBalances(accounts, s.logger)
	s.logger.Info("Fetched token balances",
		zap.String("wallet", walletAddress),
		zap.Int("accounts", len(accounts)),
		zap.Int("nonZeroMints", len(balances)))
	return balances, nil
}

// AggregateBalances drops zero and unparsable amounts and sums accounts per mint in
// first-seen order. UIAmount is recomputed from the summed raw amount.
func AggregateBalances(accounts []entity.TokenBalance, logger *zap.Logger) []entity.TokenBalance {
	type agg struct {
		amount   decimal.Decimal
		decimals int
	}

	order := make([]string, 0, len(accounts))
	byMint := make(map[string]*agg, len(accounts))

	for _, acct := range accounts {
		amount, err := decimal.NewFromString(acct.Amount)
		if err != nil {
			logger.Warn("Skipping token account with unparsable amount",
				zap.String("mint", acct.Mint),
				zap.String("amount", acct.Amount))
			continue
		}
		if !amount.IsPositive() {
			continue
		}

		if a, ok := byMint[acct.Mint]; ok {
			a.amount = a.amount.Add(amount)
			continue
		}
		byMint[acct.Mint] = &agg{amount: amount, decimals: acct.Decimals}
		order = append(order, acct.Mint)
	}

	out := make([]entity.TokenBalance, 0, len(order))
	for _, mint := range order {
		a := byMint[mint]
		out = append(out, entity.TokenBalance{
			Mint:     mint,
			Amount:   a.amount.String(),
			Decimals: a.decimals,
			UIAmount: a.amount.Shift(int32(-a.decimals)).InexactFloat64(),
		})
	}
	return out
}
