package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"holdings_tracker/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DEXScreenerClient defines the interface for interacting with the DEX Screener API.
type DEXScreenerClient interface {
	GetTokenPairsByAddresses(ctx context.Context, tokenAddresses []string) ([]entity.PairData, error)
}

// dexScreenerClientImpl is the implementation of DEXScreenerClient.
type dexScreenerClientImpl struct {
	client              *fasthttp.Client
	baseURL             string
	apiKey              string
	timeout             time.Duration
	logger              *zap.Logger
	maxTokensPerRequest int
}

// NewDEXScreenerClient creates a new instance of dexScreenerClientImpl.
func NewDEXScreenerClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger, maxTokensPerRequest int) DEXScreenerClient {
	return &dexScreenerClientImpl{
		client:              &fasthttp.Client{Name: "holdings_tracker"},
		baseURL:             strings.TrimRight(baseURL, "/"),
		apiKey:              apiKey,
		timeout:             timeout,
		logger:              logger.Named("DEXScreenerClient"),
		maxTokensPerRequest: maxTokensPerRequest,
	}
}

// GetTokenPairsByAddresses queries GET {base}/tokens/{csv} and returns the pairs that pass validation.
func (c *dexScreenerClientImpl) GetTokenPairsByAddresses(ctx context.Context, tokenAddresses []string) ([]entity.PairData, error) {
	if len(tokenAddresses) == 0 {
		return nil, fmt.Errorf("tokenAddresses cannot be empty")
	}
	if len(tokenAddresses) > c.maxTokensPerRequest {
		c.logger.Warn("Number of token addresses exceeds maxTokensPerRequest",
			zap.Int("requestedCount", len(tokenAddresses)),
			zap.Int("maxAllowed", c.maxTokensPerRequest))
		return nil, fmt.Errorf("number of token addresses (%d) exceeds max tokens per request (%d)", len(tokenAddresses), c.maxTokensPerRequest)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	requestURL := fmt.Sprintf("%s/tokens/%s", c.baseURL, strings.Join(tokenAddresses, ","))

	c.logger.Debug("Requesting token pairs from DEX Screener", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := doWithContext(ctx, c.client, req, resp, c.timeout); err != nil {
		c.logger.Error("Failed to execute request to DEX Screener", zap.String("url", requestURL), zap.Error(err))
		return nil, fmt.Errorf("%w: request to %s: %v", entity.ErrUpstreamUnavailable, requestURL, err)
	}

	rawBody := resp.Body()

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("DEX Screener API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", truncate(rawBody, 512)),
		)
		return nil, fmt.Errorf("%w: DEX Screener returned status %d", entity.ErrUpstreamUnavailable, resp.StatusCode())
	}

	pairs, err := decodePairs(rawBody)
	if err != nil {
		c.logger.Error("Failed to unmarshal DEX Screener response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", truncate(rawBody, 512)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: decode DEX Screener response: %v", entity.ErrUpstreamUnavailable, err)
	}

	valid := c.validatePairs(pairs)
	if len(valid) == 0 {
		c.logger.Warn("DEX Screener returned no usable pairs",
			zap.Int("requestedTokens", len(tokenAddresses)),
			zap.Int("rawPairs", len(pairs)))
	}

	c.logger.Debug("Received token pairs from DEX Screener",
		zap.Int("requestedTokens", len(tokenAddresses)),
		zap.Int("pairCount", len(valid)),
		zap.Int("droppedPairs", len(pairs)-len(valid)))
	return valid, nil
}

// decodePairs accepts the documented {"pairs": [...]} envelope and the bare array form.
// A null "pairs" field is an empty result.
func decodePairs(body []byte) ([]entity.PairData, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var direct []entity.PairData
		if err := json.Unmarshal(body, &direct); err != nil {
			return nil, err
		}
		return direct, nil
	}

	var wrapper entity.DEXTokenPair
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Pairs, nil
}

// validatePairs drops pairs that cannot be valued and coerces optional numbers that make no sense.
func (c *dexScreenerClientImpl) validatePairs(pairs []entity.PairData) []entity.PairData {
	valid := make([]entity.PairData, 0, len(pairs))
	for _, pair := range pairs {
		pair.BaseToken.Address = strings.TrimSpace(pair.BaseToken.Address)
		if pair.BaseToken.Address == "" {
			c.logger.Debug("Dropping pair without base token address", zap.String("pairAddress", pair.PairAddress))
			continue
		}

		price, err := decimal.NewFromString(strings.TrimSpace(pair.PriceUsd))
		if err != nil || !price.IsPositive() {
			c.logger.Debug("Dropping pair without a usable USD price",
				zap.String("baseToken", pair.BaseToken.Address),
				zap.String("pairAddress", pair.PairAddress),
				zap.String("priceUsd", pair.PriceUsd))
			continue
		}
		pair.PriceUsd = strings.TrimSpace(pair.PriceUsd)

		if pair.Fdv != nil && *pair.Fdv <= 0 {
			pair.Fdv = nil
		}
		if pair.MarketCap != nil && *pair.MarketCap <= 0 {
			pair.MarketCap = nil
		}
		if pair.Volume.H24 < 0 {
			pair.Volume.H24 = 0
		}
		valid = append(valid, pair)
	}
	return valid
}
