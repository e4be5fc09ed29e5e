package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "batch_transfer/internal/domain/entity"
	"batch_transfer/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTokenListBaseURL hosts Uniswap's per-network default token lists.
const DefaultTokenListBaseURL = "https://raw.githubusercontent.com/Uniswap/default-token-list/main/src/tokens"

// TokenListClient fetches a token list by its file name.
type TokenListClient interface {
	FetchTokenList(ctx context.Context, registryFile string) ([]domain.TokenInfo, error)
}

// tokenListClientImpl is the implementation of TokenListClient.
type tokenListClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewTokenListClient creates a client for <baseURL>/<registryFile>.json.
func NewTokenListClient(baseURL string, timeout time.Duration, logger *zap.Logger) TokenListClient {
	if baseURL == "" {
		baseURL = DefaultTokenListBaseURL
	}
	return &tokenListClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("TokenListClient"),
	}
}

// FetchTokenList implements the TokenListClient interface.
func (c *tokenListClientImpl) FetchTokenList(ctx context.Context, registryFile string) ([]domain.TokenInfo, error) {
	if registryFile == "" {
		return nil, fmt.Errorf("registryFile cannot be empty")
	}
	requestURL := fmt.Sprintf("%s/%s.json", c.baseURL, registryFile)
	c.logger.Debug("Requesting token list", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Error("Failed to execute token list request", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Error("Failed to execute token list request (with default timeout)", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s with default timeout: %w", requestURL, err)
		}
	}

	rawBody := resp.Body()
	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Warn("Token list request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()))
		return nil, fmt.Errorf("token list request to %s failed with status %d", requestURL, resp.StatusCode())
	}

	var direct []domain.TokenInfo
	if err := json.Unmarshal(rawBody, &direct); err == nil {
		c.logger.Debug("Token list loaded (array)", zap.String("file", registryFile), zap.Int("count", len(direct)))
		return direct, nil
	}

	var wrapped entity.TokenList
	if err := json.Unmarshal(rawBody, &wrapped); err != nil {
		c.logger.Error("Failed to unmarshal token list",
			zap.String("url", requestURL),
			zap.Int("bodySize", len(rawBody)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal token list from %s: %w", requestURL, err)
	}
	c.logger.Debug("Token list loaded (tokenlist document)",
		zap.String("file", registryFile),
		zap.String("list", wrapped.Name),
		zap.Int("count", len(wrapped.Tokens)))
	return wrapped.Tokens, nil
}
