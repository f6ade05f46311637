package compliance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/louisbranch/assetflow/internal/platform/breaker"
)

// ClientConfig configures the HTTP compliance client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Breaker breaker.Config
}

// Client evaluates compliance against a remote gate.
type Client struct {
	http    *resty.Client
	breaker *breaker.Breaker
	logger  *zap.Logger
}

// NewClient builds a compliance client guarded by a circuit breaker.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("compliance base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	return &Client{
		http:    httpClient,
		breaker: breaker.New("compliance-gate", cfg.Breaker, nil, logger),
		logger:  logger,
	}, nil
}

// Evaluate posts the request to /v1/evaluations. A negative verdict is a
// successful call.
func (c *Client) Evaluate(ctx context.Context, req Request) (Verdict, error) {
	var verdict Verdict
	err := c.breaker.Do(func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&verdict).
			Post("/v1/evaluations")
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %w", ErrUnavailable, ctxErr)
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("%w: unexpected status %s", ErrUnavailable, resp.Status())
		}
		return nil
	})
	if errors.Is(err, breaker.ErrOpen) {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		c.logger.Warn("compliance evaluation failed",
			zap.String("jurisdiction", req.Jurisdiction),
			zap.String("operation", string(req.Operation)),
			zap.Error(err),
		)
		return Verdict{}, err
	}
	return verdict, nil
}

var _ Gate = (*Client)(nil)
