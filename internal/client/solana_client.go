package client

import (
	"context"
	"fmt"
	"time"

	"holdings_tracker/internal/entity"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// TokenAccountsRPC is the subset of *rpc.Client the balance client needs.
type TokenAccountsRPC interface {
	GetTokenAccountsByOwner(
		ctx context.Context,
		owner solana.PublicKey,
		conf *rpc.GetTokenAccountsConfig,
		opts *rpc.GetTokenAccountsOpts,
	) (*rpc.GetTokenAccountsResult, error)
}

// SolanaClient lists the SPL token accounts held by a wallet.
type SolanaClient interface {
	GetParsedTokenAccounts(ctx context.Context, ownerAddress string) ([]entity.TokenBalance, error)
}

type solanaClientImpl struct {
	rpc        TokenAccountsRPC
	commitment rpc.CommitmentType
	timeout    time.Duration
	logger     *zap.Logger
}

// NewSolanaClient wraps an RPC client. Pass rpc.New(endpoint) in production.
func NewSolanaClient(rpcClient TokenAccountsRPC, commitment string, timeout time.Duration, logger *zap.Logger) SolanaClient {
	ct := rpc.CommitmentType(commitment)
	if ct == "" {
		ct = rpc.CommitmentConfirmed
	}
	return &solanaClientImpl{
		rpc:        rpcClient,
		commitment: ct,
		timeout:    timeout,
		logger:     logger.Named("SolanaClient"),
	}
}

// parsedTokenAccount mirrors the jsonParsed layout of an SPL token account.
type parsedTokenAccount struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string `json:"type"`
		Info struct {
			Mint        string `json:"mint"`
			Owner       string `json:"owner"`
			TokenAmount struct {
				Amount         string   `json:"amount"`
				Decimals       int      `json:"decimals"`
				UIAmount       *float64 `json:"uiAmount"`
				UIAmountString string   `json:"uiAmountString"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// GetParsedTokenAccounts returns one TokenBalance per token account, zero balances included.
// Accounts whose data cannot be decoded are skipped.
func (c *solanaClientImpl) GetParsedTokenAccounts(ctx context.Context, ownerAddress string) ([]entity.TokenBalance, error) {
	owner, err := solana.PublicKeyFromBase58(ownerAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: wallet %q: %v", entity.ErrInvalidAddress, ownerAddress, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	programID := solana.TokenProgramID
	result, err := c.rpc.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{ProgramId: &programID},
		&rpc.GetTokenAccountsOpts{
			Commitment: c.commitment,
			Encoding:   solana.EncodingJSONParsed,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: get token accounts by owner: %v", entity.ErrUpstreamUnavailable, err)
	}
	if result == nil {
		return nil, nil
	}

	balances := make([]entity.TokenBalance, 0, len(result.Value))
	for _, acct := range result.Value {
		if acct == nil || acct.Account.Data == nil {
			continue
		}
		raw := acct.Account.Data.GetRawJSON()
		if raw == nil {
			c.logger.Warn("Token account data is not jsonParsed", zap.String("account", acct.Pubkey.String()))
			continue
		}

		var parsed parsedTokenAccount
		if err := json.Unmarshal(raw, &parsed); err != nil {
			c.logger.Warn("Failed to decode token account data", zap.String("account", acct.Pubkey.String()), zap.Error(err))
			continue
		}
		info := parsed.Parsed.Info
		if info.Mint == "" || info.TokenAmount.Amount == "" {
			c.logger.Warn("Token account without mint or amount", zap.String("account", acct.Pubkey.String()))
			continue
		}

		b := entity.TokenBalance{
			Mint:     info.Mint,
			Amount:   info.TokenAmount.Amount,
			Decimals: info.TokenAmount.Decimals,
		}
		if info.TokenAmount.UIAmount != nil {
			b.UIAmount = *info.TokenAmount.UIAmount
		}
		balances = append(balances, b)
	}

	c.logger.Debug("Fetched token accounts",
		zap.String("owner", ownerAddress),
		zap.Int("accounts", len(result.Value)),
		zap.Int("decoded", len(balances)))
	return balances, nil
}
