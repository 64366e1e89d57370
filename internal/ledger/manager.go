package ledger

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"ordertrack/internal/order"
)

// ErrOrderNotFound is returned when an order identity is unknown.
var ErrOrderNotFound = errors.New("order not found")

// FillOutcome classifies what happened to a fill routed through the
// manager, so embedding code can log, ignore, or escalate without losing
// information.
type FillOutcome int

const (
	FillAccepted FillOutcome = iota
	FillRejectedTerminal
	FillRejectedOverfill
)

func (f FillOutcome) String() string {
	switch f {
	case FillAccepted:
		return "accepted"
	case FillRejectedTerminal:
		return "rejected_terminal"
	case FillRejectedOverfill:
		return "rejected_overfill"
	default:
		return "unknown"
	}
}

// Manager owns the ordered collection of orders, assigns sequential
// identities, and routes fills. It does no internal locking: all
// operations run to completion on one goroutine, and concurrent embedders
// must serialize access (see internal/service).
type Manager struct {
	log    zerolog.Logger
	orders []*order.Order
	byID   map[int64]*order.Order
	nextID int64
}

// NewManager creates an empty manager. The first order gets identity 1.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log:    log,
		byID:   make(map[int64]*order.Order),
		nextID: 1,
	}
}

// AddOrder constructs an order from the given terms, assigns the next
// identity, and appends it to the collection. It never fails for
// well-formed terms; validation belongs to the boundary that accepts them.
func (m *Manager) AddOrder(terms order.Terms) *order.Order {
	o := order.New(m.nextID, terms)
	m.orders = append(m.orders, o)
	m.byID[o.ID()] = o
	m.nextID++

	m.log.Info().
		Int64("order_number", o.ID()).
		Int64("ticker_id", terms.TickerID).
		Float64("quantity", terms.Quantity).
		Float64("price", terms.Price).
		Float64("transaction_fee", terms.TransactionFee).
		Msg("order added")

	return o
}

// GetOrder retrieves an order by identity.
func (m *Manager) GetOrder(id int64) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("order #%d: %w", id, ErrOrderNotFound)
	}
	return o, nil
}

// FillOrder routes a fill to the addressed order. A fill against an
// already-filled order is a logged no-op (FillRejectedTerminal, nil) —
// repeated or late fill attempts are non-fatal at this boundary, while the
// order entity itself stays strict for direct callers. An overfill is
// surfaced as FillRejectedOverfill with the underlying error.
func (m *Manager) FillOrder(id int64, price, quantity float64) (FillOutcome, error) {
	o, err := m.GetOrder(id)
	if err != nil {
		return FillRejectedTerminal, err
	}

	if o.IsFilled() {
		m.log.Warn().
			Int64("order_number", id).
			Float64("fill_price", price).
			Float64("fill_quantity", quantity).
			Msg("order already filled, ignoring fill request")
		return FillRejectedTerminal, nil
	}

	if err := o.RecordFill(price, quantity); err != nil {
		if errors.Is(err, order.ErrFillExceedsRemaining) {
			return FillRejectedOverfill, err
		}
		return FillRejectedTerminal, err
	}

	m.log.Info().
		Int64("order_number", id).
		Float64("fill_price", price).
		Float64("fill_quantity", quantity).
		Str("status", o.Status().String()).
		Msg("fill recorded")

	return FillAccepted, nil
}

// OpenOrders returns every order whose status is not Filled, in identity
// order.
func (m *Manager) OpenOrders() []*order.Order {
	var open []*order.Order
	for _, o := range m.orders {
		if o.NeedsFills() {
			open = append(open, o)
		}
	}
	return open
}

// Orders returns all orders in identity order.
func (m *Manager) Orders() []*order.Order {
	out := make([]*order.Order, len(m.orders))
	copy(out, m.orders)
	return out
}

// NextID returns the identity the next added order will receive.
func (m *Manager) NextID() int64 {
	return m.nextID
}

// replace swaps the whole collection, used by snapshot load.
func (m *Manager) replace(orders []*order.Order, nextID int64) {
	m.orders = orders
	m.byID = make(map[int64]*order.Order, len(orders))
	for _, o := range orders {
		m.byID[o.ID()] = o
	}
	m.nextID = nextID
}
