package order

import (
	"errors"
	"fmt"
	"time"
)

// Status is derived from the fill history, never stored independently,
// so it cannot drift out of sync with the fills.
type Status int

const (
	StatusOpen Status = iota
	StatusPartiallyFilled
	StatusFilled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusPartiallyFilled:
		return "Partially Filled"
	case StatusFilled:
		return "Filled"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the order accepts no further fills.
func (s Status) Terminal() bool {
	return s == StatusFilled
}

// ParseStatus maps the persisted status text back to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "Open":
		return StatusOpen, nil
	case "Partially Filled":
		return StatusPartiallyFilled, nil
	case "Filled":
		return StatusFilled, nil
	default:
		return StatusOpen, fmt.Errorf("unknown order status %q", s)
	}
}

var (
	// ErrOrderFilled is returned by RecordFill on a terminal order.
	ErrOrderFilled = errors.New("order is already completely filled")

	// ErrFillExceedsRemaining is returned when a fill would overfill the order.
	ErrFillExceedsRemaining = errors.New("fill quantity exceeds remaining quantity")
)

// Terms are the immutable inputs an order is created with.
// TransactionFee is informational only; it is never deducted from fill economics.
type Terms struct {
	TickerID       int64
	Quantity       float64
	Price          float64
	ExchangeID     int64
	TransactionFee float64
}

// Validate enforces the boundary invariants (quantity > 0, price > 0).
// The ledger itself accepts any terms; callers that take user or broker
// input are expected to validate first.
func (t Terms) Validate() error {
	if t.Quantity <= 0 {
		return fmt.Errorf("invalid quantity %v: must be greater than 0", t.Quantity)
	}
	if t.Price <= 0 {
		return fmt.Errorf("invalid price %v: must be greater than 0", t.Price)
	}
	if t.TransactionFee < 0 {
		return fmt.Errorf("invalid transaction fee %v: must not be negative", t.TransactionFee)
	}
	return nil
}

// Fill is one execution against an order. Fills are immutable once appended.
type Fill struct {
	Price    float64
	Quantity float64
	FilledAt time.Time
}

// Order is a single trading order: identity, static terms, and an
// append-only fill history. All derived fields (filled quantity, remaining
// quantity, average fill price, status) are computed from the fills.
type Order struct {
	id        int64
	terms     Terms
	createdAt time.Time
	fills     []Fill
}

// New constructs an open order with an empty fill history.
// Identity assignment belongs to the ledger; the order just carries it.
func New(id int64, terms Terms) *Order {
	return &Order{
		id:        id,
		terms:     terms,
		createdAt: time.Now(),
	}
}

// Restore rebuilds an order from persisted state with its original
// creation time. Fills are replayed separately via ReplayFill.
func Restore(id int64, terms Terms, createdAt time.Time) *Order {
	return &Order{
		id:        id,
		terms:     terms,
		createdAt: createdAt,
	}
}

func (o *Order) ID() int64               { return o.id }
func (o *Order) Terms() Terms            { return o.terms }
func (o *Order) TickerID() int64         { return o.terms.TickerID }
func (o *Order) Quantity() float64       { return o.terms.Quantity }
func (o *Order) Price() float64          { return o.terms.Price }
func (o *Order) ExchangeID() int64       { return o.terms.ExchangeID }
func (o *Order) TransactionFee() float64 { return o.terms.TransactionFee }
func (o *Order) CreatedAt() time.Time    { return o.createdAt }

// Fills returns a copy of the fill history in append order.
func (o *Order) Fills() []Fill {
	out := make([]Fill, len(o.fills))
	copy(out, o.fills)
	return out
}

// FilledQuantity is the sum of all fill quantities.
func (o *Order) FilledQuantity() float64 {
	var total float64
	for _, f := range o.fills {
		total += f.Quantity
	}
	return total
}

// RemainingQuantity is the original quantity minus the filled quantity.
func (o *Order) RemainingQuantity() float64 {
	return o.terms.Quantity - o.FilledQuantity()
}

// AverageFillPrice is the quantity-weighted mean of all fill prices,
// 0 when there are no fills.
func (o *Order) AverageFillPrice() float64 {
	if len(o.fills) == 0 {
		return 0
	}
	var value float64
	for _, f := range o.fills {
		value += f.Price * f.Quantity
	}
	return value / o.FilledQuantity()
}

// Status derives the current state from the fill history.
func (o *Order) Status() Status {
	filled := o.FilledQuantity()
	switch {
	case filled >= o.terms.Quantity:
		return StatusFilled
	case len(o.fills) > 0:
		return StatusPartiallyFilled
	default:
		return StatusOpen
	}
}

// IsFilled reports whether the order is completely filled.
func (o *Order) IsFilled() bool {
	return o.Status() == StatusFilled
}

// NeedsFills reports whether the order still accepts fills.
func (o *Order) NeedsFills() bool {
	return !o.IsFilled()
}

// RecordFill appends a fill, stamping it with the current wall clock.
// A terminal order rejects further fills with ErrOrderFilled; a fill larger
// than the remaining quantity is rejected with ErrFillExceedsRemaining.
// The fill history is unchanged on error.
func (o *Order) RecordFill(price, quantity float64) error {
	if o.IsFilled() {
		return fmt.Errorf("order #%d: %w", o.id, ErrOrderFilled)
	}
	if remaining := o.RemainingQuantity(); quantity > remaining {
		return fmt.Errorf("order #%d: fill quantity %v exceeds remaining %v: %w",
			o.id, quantity, remaining, ErrFillExceedsRemaining)
	}
	o.fills = append(o.fills, Fill{
		Price:    price,
		Quantity: quantity,
		FilledAt: time.Now(),
	})
	return nil
}

// ReplayFill appends a fill with its original timestamp, bypassing
// validation. Only for reconstructing orders from persisted state that is
// assumed already consistent.
func (o *Order) ReplayFill(price, quantity float64, at time.Time) {
	o.fills = append(o.fills, Fill{Price: price, Quantity: quantity, FilledAt: at})
}
