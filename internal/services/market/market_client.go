package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Asset is a tradeable asset as reported by the market-data provider
type Asset struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Active bool   `json:"active"`
}

// Candle is a single OHLC candle
type Candle struct {
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Timestamp int64   `json:"timestamp"`
}

// MarketClient is the market-data collaborator. It feeds only the cosmetic
// trade simulation written alongside yield claims; its failures must never
// block a yield credit.
type MarketClient struct {
	baseURL string
	client  *http.Client
}

// NewMarketClient creates a new market data client
func NewMarketClient(baseURL string, timeout time.Duration) *MarketClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &MarketClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// ListActiveAssets returns the provider's active assets
func (c *MarketClient) ListActiveAssets(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	if err := c.get(ctx, "/v1/assets?active=true", &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// GetCandles returns recent candles for an asset
func (c *MarketClient) GetCandles(ctx context.Context, assetID, timeframe string) ([]Candle, error) {
	var candles []Candle
	path := fmt.Sprintf("/v1/assets/%s/candles?timeframe=%s", assetID, timeframe)
	if err := c.get(ctx, path, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

func (c *MarketClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("error building market request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error calling market provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading market response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("market provider returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding market response: %w", err)
	}
	return nil
}
