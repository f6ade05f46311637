package ledger

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

// ClientConfig configures the HTTP ledger client.
type ClientConfig struct {
	BaseURL string
	// Timeout bounds each HTTP round trip.
	Timeout time.Duration
	Breaker breaker.Config
}

// Client calls a remote AssetLedger over HTTP.
type Client struct {
	http    *resty.Client
	breaker *breaker.Breaker
	logger  *zap.Logger
}

type apiError struct {
	Message string `json:"message"`
}

// NewClient builds a ledger client guarded by a circuit breaker. Unknown
// assets and refused mutations do not count toward tripping it.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("ledger base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetError(&apiError{})
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	businessFailure := func(err error) bool {
		return errors.Is(err, ErrAssetNotFound) || errors.Is(err, ErrRejected)
	}
	return &Client{
		http:    httpClient,
		breaker: breaker.New("asset-ledger", cfg.Breaker, businessFailure, logger),
		logger:  logger,
	}, nil
}

// GetAsset fetches the asset snapshot.
func (c *Client) GetAsset(ctx context.Context, assetID string) (Asset, error) {
	var asset Asset
	err := c.call(ctx, "get_asset", assetID, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetPathParam("asset_id", assetID).
			SetResult(&asset).
			Get("/v1/assets/{asset_id}")
	})
	if err != nil {
		return Asset{}, err
	}
	if asset.ID == "" {
		asset.ID = assetID
	}
	return asset, nil
}

// TransferAsset moves ownership to newOwner.
func (c *Client) TransferAsset(ctx context.Context, assetID, newOwner string) error {
	return c.call(ctx, "transfer_asset", assetID, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetPathParam("asset_id", assetID).
			SetBody(map[string]string{"new_owner": newOwner}).
			Post("/v1/assets/{asset_id}/transfer")
	})
}

// UpdateStatus sets the asset status.
func (c *Client) UpdateStatus(ctx context.Context, assetID, status string) error {
	return c.call(ctx, "update_status", assetID, func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetPathParam("asset_id", assetID).
			SetBody(map[string]string{"status": status}).
			Post("/v1/assets/{asset_id}/status")
	})
}

func (c *Client) call(ctx context.Context, op, assetID string, send func() (*resty.Response, error)) error {
	err := c.breaker.Do(func() error {
		resp, err := send()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, op, assetID, ctxErr)
			}
			return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, assetID, err)
		}
		return classify(resp, assetID)
	})
	if errors.Is(err, breaker.ErrOpen) {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil && Transient(err) {
		c.logger.Warn("ledger call failed",
			zap.String("operation", op),
			zap.String("asset_id", assetID),
			zap.Error(err),
		)
	}
	return err
}

func classify(resp *resty.Response, assetID string) error {
	if !resp.IsError() {
		return nil
	}
	message := resp.Status()
	if apiErr, ok := resp.Error().(*apiError); ok && apiErr != nil && apiErr.Message != "" {
		message = apiErr.Message
	}
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	case code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout:
		return fmt.Errorf("%w: %s", ErrUnavailable, message)
	default:
		return fmt.Errorf("%w: %s", ErrRejected, message)
	}
}

var _ Ledger = (*Client)(nil)
