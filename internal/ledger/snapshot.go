package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ordertrack/internal/order"
)

// The snapshot file is the durable contract other tools and scripts read:
// an ordered sequence of order records with the derived fields written out
// alongside the raw fill history. On load the derived fields are ignored
// and everything is recomputed from terms + fills; the stored status is
// only cross-checked.

const timeLayout = time.RFC3339Nano

type orderRecord struct {
	OrderNumber       int64        `json:"order_number"`
	TickerID          int64        `json:"ticker_id"`
	ExchangeID        int64        `json:"exchange_id"`
	OriginalQuantity  float64      `json:"original_quantity"`
	OrderPrice        float64      `json:"order_price"`
	CreatedAt         string       `json:"created_at"`
	Status            string       `json:"status"`
	NeedsFills        bool         `json:"needs_fills"`
	FilledQuantity    float64      `json:"filled_quantity"`
	RemainingQuantity float64      `json:"remaining_quantity"`
	AverageFillPrice  float64      `json:"average_fill_price"`
	TransactionFee    float64      `json:"transaction_fee"`
	Fills             []fillRecord `json:"fills"`
}

type fillRecord struct {
	FillPrice    float64 `json:"fill_price"`
	FillQuantity float64 `json:"fill_quantity"`
	FilledAt     string  `json:"filled_at"`
}

func recordFromOrder(o *order.Order) orderRecord {
	fills := o.Fills()
	frs := make([]fillRecord, 0, len(fills))
	for _, f := range fills {
		frs = append(frs, fillRecord{
			FillPrice:    f.Price,
			FillQuantity: f.Quantity,
			FilledAt:     f.FilledAt.Format(timeLayout),
		})
	}

	return orderRecord{
		OrderNumber:       o.ID(),
		TickerID:          o.TickerID(),
		ExchangeID:        o.ExchangeID(),
		OriginalQuantity:  o.Quantity(),
		OrderPrice:        o.Price(),
		CreatedAt:         o.CreatedAt().Format(timeLayout),
		Status:            o.Status().String(),
		NeedsFills:        o.NeedsFills(),
		FilledQuantity:    o.FilledQuantity(),
		RemainingQuantity: o.RemainingQuantity(),
		AverageFillPrice:  o.AverageFillPrice(),
		TransactionFee:    o.TransactionFee(),
		Fills:             frs,
	}
}

func (m *Manager) records() []orderRecord {
	records := make([]orderRecord, 0, len(m.orders))
	for _, o := range m.orders {
		records = append(records, recordFromOrder(o))
	}
	return records
}

// Save serializes every order's full state to path, overwriting the whole
// file. Not safe against a concurrent Save or Load on the same path;
// embedders keep single-writer discipline.
func (m *Manager) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(m.records(), "", "    ")
	if err != nil {
		return fmt.Errorf("marshal orders: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}

	m.log.Info().Str("path", path).Int("orders", len(m.orders)).Msg("orders saved")
	return nil
}

// AppendOrders appends the current orders to an existing snapshot file
// instead of overwriting it. This is a save-side variant only; Load always
// replaces the in-memory collection.
func (m *Manager) AppendOrders(path string) error {
	var existing []orderRecord

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("parse existing snapshot %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fresh file.
	default:
		return fmt.Errorf("read snapshot %s: %w", path, err)
	}

	existing = append(existing, m.records()...)

	out, err := json.MarshalIndent(existing, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal orders: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}

	m.log.Info().Str("path", path).Int("orders", len(m.orders)).Msg("orders appended")
	return nil
}

// Load reconstructs the collection from a snapshot file, replacing the
// in-memory state. Missing or unparsable files fail soft: the error is
// logged, false is returned, and the in-memory state is left unchanged.
// Derived fields are recomputed from the raw fills; the next identity
// becomes 1 + the highest persisted identity.
func (m *Manager) Load(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.Info().Str("path", path).Msg("no saved orders file found")
		} else {
			m.log.Error().Err(err).Str("path", path).Msg("error reading orders")
		}
		return false
	}

	var records []orderRecord
	if err := json.Unmarshal(data, &records); err != nil {
		m.log.Error().Err(err).Str("path", path).Msg("error parsing orders")
		return false
	}

	orders := make([]*order.Order, 0, len(records))
	var highest int64

	for _, rec := range records {
		o, err := restoreOrder(rec)
		if err != nil {
			m.log.Error().Err(err).Int64("order_number", rec.OrderNumber).Msg("error restoring order")
			return false
		}

		if got := o.Status().String(); got != rec.Status {
			m.log.Warn().
				Int64("order_number", rec.OrderNumber).
				Str("stored_status", rec.Status).
				Str("recomputed_status", got).
				Msg("persisted status disagrees with fill history")
		}

		orders = append(orders, o)
		if rec.OrderNumber > highest {
			highest = rec.OrderNumber
		}
	}

	m.replace(orders, highest+1)
	m.log.Info().
		Str("path", path).
		Int("orders", len(orders)).
		Int64("next_order_number", m.nextID).
		Msg("orders loaded")
	return true
}

func restoreOrder(rec orderRecord) (*order.Order, error) {
	createdAt, err := time.Parse(timeLayout, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", rec.CreatedAt, err)
	}

	terms := order.Terms{
		TickerID:       rec.TickerID,
		Quantity:       rec.OriginalQuantity,
		Price:          rec.OrderPrice,
		ExchangeID:     rec.ExchangeID,
		TransactionFee: rec.TransactionFee,
	}

	o := order.Restore(rec.OrderNumber, terms, createdAt)
	for _, f := range rec.Fills {
		filledAt, err := time.Parse(timeLayout, f.FilledAt)
		if err != nil {
			return nil, fmt.Errorf("parse filled_at %q: %w", f.FilledAt, err)
		}
		// Persisted fills are assumed already consistent; replay bypasses
		// fill-acceptance validation.
		o.ReplayFill(f.FillPrice, f.FillQuantity, filledAt)
	}

	return o, nil
}
