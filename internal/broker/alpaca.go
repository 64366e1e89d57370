package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	alpacaPaperURL = "https://paper-api.alpaca.markets"
	alpacaLiveURL  = "https://api.alpaca.markets"
)

// AlpacaConfig holds the trading API credentials.
type AlpacaConfig struct {
	APIKeyID  string
	SecretKey string
	Paper     bool
	BaseURL   string // overrides the paper/live URL when set (tests)
}

// AlpacaClient is an ExecutionClient backed by the Alpaca trading REST API.
type AlpacaClient struct {
	cfg     AlpacaConfig
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewAlpacaClient(cfg AlpacaConfig, log zerolog.Logger) *AlpacaClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Paper {
			baseURL = alpacaPaperURL
		} else {
			baseURL = alpacaLiveURL
		}
	}

	return &AlpacaClient{
		cfg:     cfg,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type alpacaOrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id"`
}

type alpacaOrder struct {
	ID             string  `json:"id"`
	Status         string  `json:"status"`
	FilledQty      string  `json:"filled_qty"`
	FilledAvgPrice *string `json:"filled_avg_price"`
}

// SubmitMarketOrder places a day market order and returns the venue's
// order id.
func (c *AlpacaClient) SubmitMarketOrder(ctx context.Context, symbol string, quantity float64, side Side) (string, error) {
	if _, err := ParseSide(string(side)); err != nil {
		return "", err
	}
	if quantity <= 0 {
		return "", fmt.Errorf("invalid quantity %v: must be greater than 0", quantity)
	}

	body, err := json.Marshal(alpacaOrderRequest{
		Symbol:        symbol,
		Qty:           strconv.FormatFloat(quantity, 'f', -1, 64),
		Side:          string(side),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal order request: %w", err)
	}

	var placed alpacaOrder
	if err := c.do(ctx, http.MethodPost, "/v2/orders", bytes.NewReader(body), &placed); err != nil {
		return "", fmt.Errorf("submit %s order for %v %s: %w", side, quantity, symbol, err)
	}

	c.log.Info().
		Str("symbol", symbol).
		Float64("quantity", quantity).
		Str("side", string(side)).
		Str("external_id", placed.ID).
		Msg("market order submitted")

	return placed.ID, nil
}

// GetOrderStatus fetches the venue's execution state for an order.
func (c *AlpacaClient) GetOrderStatus(ctx context.Context, externalID string) (StatusReport, error) {
	var o alpacaOrder
	if err := c.do(ctx, http.MethodGet, "/v2/orders/"+externalID, nil, &o); err != nil {
		return StatusReport{}, fmt.Errorf("get order status %s: %w", externalID, err)
	}

	filledQty, err := strconv.ParseFloat(o.FilledQty, 64)
	if err != nil {
		return StatusReport{}, fmt.Errorf("parse filled_qty %q: %w", o.FilledQty, err)
	}

	var avgPrice float64
	if o.FilledAvgPrice != nil {
		avgPrice, err = strconv.ParseFloat(*o.FilledAvgPrice, 64)
		if err != nil {
			return StatusReport{}, fmt.Errorf("parse filled_avg_price %q: %w", *o.FilledAvgPrice, err)
		}
	}

	return StatusReport{
		Status:           o.Status,
		FilledQuantity:   filledQty,
		AverageFillPrice: avgPrice,
	}, nil
}

func (c *AlpacaClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.cfg.APIKeyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.cfg.SecretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
