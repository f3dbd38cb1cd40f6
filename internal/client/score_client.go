package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"holdings_tracker/internal/entity"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// ScoreClient talks to the trust-score API.
type ScoreClient interface {
	GetTokenScores(ctx context.Context, tokenAddresses []string) ([]entity.ScoreResult, error)
}

type scoreClientImpl struct {
	client              *fasthttp.Client
	baseURL             string
	apiKey              string
	timeout             time.Duration
	logger              *zap.Logger
	maxTokensPerRequest int
}

// NewScoreClient creates a client for POST {baseURL}/tokens.
func NewScoreClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger, maxTokensPerRequest int) ScoreClient {
	return &scoreClientImpl{
		client:              &fasthttp.Client{Name: "holdings_tracker"},
		baseURL:             strings.TrimRight(baseURL, "/"),
		apiKey:              apiKey,
		timeout:             timeout,
		logger:              logger.Named("ScoreClient"),
		maxTokensPerRequest: maxTokensPerRequest,
	}
}

// GetTokenScores requests scores for one batch. Per-address failures are reported in
// ScoreResult.Error; only transport, status and decoding failures are returned as errors.
func (c *scoreClientImpl) GetTokenScores(ctx context.Context, tokenAddresses []string) ([]entity.ScoreResult, error) {
	if len(tokenAddresses) == 0 {
		return nil, fmt.Errorf("tokenAddresses cannot be empty")
	}
	if len(tokenAddresses) > c.maxTokensPerRequest {
		return nil, fmt.Errorf("number of token addresses (%d) exceeds max tokens per request (%d)", len(tokenAddresses), c.maxTokensPerRequest)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(entity.ScoreRequest{Addresses: tokenAddresses})
	if err != nil {
		return nil, fmt.Errorf("marshal score request: %w", err)
	}

	requestURL := c.baseURL + "/tokens"

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	c.logger.Debug("Requesting trust scores", zap.Int("batchSize", len(tokenAddresses)))

	if err := doWithContext(ctx, c.client, req, resp, c.timeout); err != nil {
		return nil, fmt.Errorf("%w: request to %s: %v", entity.ErrUpstreamUnavailable, requestURL, err)
	}

	rawBody := resp.Body()
	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Warn("Score API request failed",
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", truncate(rawBody, 512)))
		return nil, fmt.Errorf("%w: score API returned status %d", entity.ErrUpstreamUnavailable, resp.StatusCode())
	}

	var out entity.ScoreResponse
	if err := json.Unmarshal(rawBody, &out); err != nil {
		return nil, fmt.Errorf("%w: decode score response: %v", entity.ErrUpstreamUnavailable, err)
	}

	for _, r := range out.Data {
		if r.Error != "" {
			c.logger.Debug("Score API could not score token", zap.String("address", r.Address), zap.String("error", r.Error))
		}
	}
	return out.Data, nil
}
