package feed

import (
	"encoding/json"
	"fmt"
)

// Report is a parsed, validated fill report.
type Report struct {
	OrderNumber  int64
	FillPrice    float64
	FillQuantity float64
}

// fillReportJSON is the wire format. Field names use snake_case to match
// upstream producers and the snapshot contract.
type fillReportJSON struct {
	OrderNumber  int64   `json:"order_number"`
	FillPrice    float64 `json:"fill_price"`
	FillQuantity float64 `json:"fill_quantity"`
}

// ParseReport parses and validates a raw fill report payload.
func ParseReport(data []byte) (Report, error) {
	var j fillReportJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Report{}, fmt.Errorf("parse fill report: %w", err)
	}

	if j.OrderNumber <= 0 {
		return Report{}, fmt.Errorf("invalid order_number %d: must be greater than 0", j.OrderNumber)
	}
	if j.FillQuantity <= 0 {
		return Report{}, fmt.Errorf("invalid fill_quantity %v: must be greater than 0", j.FillQuantity)
	}
	if j.FillPrice <= 0 {
		return Report{}, fmt.Errorf("invalid fill_price %v: must be greater than 0", j.FillPrice)
	}

	return Report{
		OrderNumber:  j.OrderNumber,
		FillPrice:    j.FillPrice,
		FillQuantity: j.FillQuantity,
	}, nil
}
