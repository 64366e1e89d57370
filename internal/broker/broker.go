package broker

import (
	"context"
	"fmt"
	"strings"
)

// Side is the direction of a market order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide validates and normalizes a side string.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid order side %q: must be 'buy' or 'sell'", s)
	}
}

// StatusReport is the venue's view of an order's execution progress.
type StatusReport struct {
	Status           string // e.g. "new", "partially_filled", "filled"
	FilledQuantity   float64
	AverageFillPrice float64
}

// ExecutionClient is the external execution collaborator: it submits
// market orders and reports their status. Retry, auth, and rate limiting
// are the implementation's own concern.
type ExecutionClient interface {
	SubmitMarketOrder(ctx context.Context, symbol string, quantity float64, side Side) (string, error)
	GetOrderStatus(ctx context.Context, externalID string) (StatusReport, error)
}
