package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ordertrack/internal/broker"
	"ordertrack/internal/observability"
	"ordertrack/internal/order"
	"ordertrack/internal/service"
)

// LinkState tracks an order's submission to the execution venue.
type LinkState int

const (
	// LinkReserved: the local order exists, the venue submission is in flight.
	LinkReserved LinkState = iota
	// LinkConfirmed: the venue accepted the submission and returned its id.
	LinkConfirmed
	// LinkOrphaned: the venue rejected the submission. The local order is
	// kept (not rolled back) so nothing that happened is lost; Orphans()
	// surfaces these for cleanup.
	LinkOrphaned
)

func (s LinkState) String() string {
	switch s {
	case LinkReserved:
		return "reserved"
	case LinkConfirmed:
		return "confirmed"
	case LinkOrphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// Link is one local-order-to-external-order association.
type Link struct {
	LocalID     int64
	ExternalID  string
	State       LinkState
	SubmittedAt time.Time
}

// Bridge submits ledger orders to an external execution venue and
// reconciles the venue's fill reports back into the ledger. Local and
// external identity spaces are unrelated, so the bridge keeps an explicit
// bidirectional map rather than assuming the ids line up.
type Bridge struct {
	log     zerolog.Logger
	metrics *observability.Metrics
	svc     *service.OrderService
	exec    broker.ExecutionClient

	mu         sync.Mutex
	byLocal    map[int64]*Link
	byExternal map[string]*Link
}

func New(svc *service.OrderService, exec broker.ExecutionClient, log zerolog.Logger, metrics *observability.Metrics) *Bridge {
	return &Bridge{
		log:        log,
		metrics:    metrics,
		svc:        svc,
		exec:       exec,
		byLocal:    make(map[int64]*Link),
		byExternal: make(map[string]*Link),
	}
}

// PlaceOrder validates the request, creates the local ledger order, then
// submits an equivalent market order to the venue. Validation failures
// happen before either collaborator is touched. If the venue rejects the
// submission the local order stays in the ledger and its link is marked
// orphaned; the caller gets the submission error.
func (b *Bridge) PlaceOrder(ctx context.Context, tickerID int64, symbol string, quantity, price float64, side string, exchangeID int64) (string, error) {
	parsedSide, err := broker.ParseSide(side)
	if err != nil {
		b.countSubmission("invalid")
		return "", err
	}
	if quantity <= 0 {
		b.countSubmission("invalid")
		return "", fmt.Errorf("invalid quantity %v: must be greater than 0", quantity)
	}
	if price <= 0 {
		b.countSubmission("invalid")
		return "", fmt.Errorf("invalid price %v: must be greater than 0", price)
	}

	view, err := b.svc.PlaceOrder(order.Terms{
		TickerID:   tickerID,
		Quantity:   quantity,
		Price:      price,
		ExchangeID: exchangeID,
	})
	if err != nil {
		b.countSubmission("rejected_local")
		return "", fmt.Errorf("create local order: %w", err)
	}

	link := &Link{
		LocalID:     view.OrderNumber,
		State:       LinkReserved,
		SubmittedAt: time.Now(),
	}
	b.mu.Lock()
	b.byLocal[link.LocalID] = link
	b.mu.Unlock()

	externalID, err := b.exec.SubmitMarketOrder(ctx, symbol, quantity, parsedSide)
	if err != nil {
		b.mu.Lock()
		link.State = LinkOrphaned
		b.mu.Unlock()

		b.countSubmission("orphaned")
		b.log.Error().
			Err(err).
			Int64("order_number", link.LocalID).
			Str("symbol", symbol).
			Msg("external submission failed, local order kept")
		return "", fmt.Errorf("submit order %d to venue: %w", link.LocalID, err)
	}

	b.mu.Lock()
	link.ExternalID = externalID
	link.State = LinkConfirmed
	b.byExternal[externalID] = link
	b.mu.Unlock()

	b.countSubmission("confirmed")
	b.log.Info().
		Int64("order_number", link.LocalID).
		Str("external_id", externalID).
		Str("symbol", symbol).
		Msg("order submitted to venue")

	return externalID, nil
}

// Reconcile queries the venue's execution state for an external order and
// applies the positive delta between the venue's filled quantity and the
// ledger's, at the venue's average fill price. A zero or negative delta is
// a no-op.
func (b *Bridge) Reconcile(ctx context.Context, externalID string) error {
	b.mu.Lock()
	link, ok := b.byExternal[externalID]
	b.mu.Unlock()
	if !ok {
		b.countReconcile("unknown")
		return fmt.Errorf("no order linked to external id %q", externalID)
	}

	report, err := b.exec.GetOrderStatus(ctx, externalID)
	if err != nil {
		b.countReconcile("status_error")
		return fmt.Errorf("reconcile order %d: %w", link.LocalID, err)
	}

	view, err := b.svc.Get(link.LocalID)
	if err != nil {
		b.countReconcile("missing_local")
		return fmt.Errorf("reconcile order %d: %w", link.LocalID, err)
	}

	delta := report.FilledQuantity - view.FilledQuantity
	if delta <= 0 {
		b.countReconcile("noop")
		b.log.Debug().
			Int64("order_number", link.LocalID).
			Float64("venue_filled", report.FilledQuantity).
			Float64("local_filled", view.FilledQuantity).
			Msg("nothing to reconcile")
		return nil
	}

	outcome, err := b.svc.Fill(link.LocalID, report.AverageFillPrice, delta)
	if err != nil {
		b.countReconcile("fill_error")
		return fmt.Errorf("apply reconciled fill of %v to order %d: %w", delta, link.LocalID, err)
	}

	b.countReconcile("applied")
	b.log.Info().
		Int64("order_number", link.LocalID).
		Str("external_id", externalID).
		Float64("delta", delta).
		Float64("avg_price", report.AverageFillPrice).
		Str("outcome", outcome.String()).
		Msg("reconciled venue fills into ledger")
	return nil
}

// Link returns the submission link for a local order, if one exists.
func (b *Bridge) Link(localID int64) (Link, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	link, ok := b.byLocal[localID]
	if !ok {
		return Link{}, false
	}
	return *link, true
}

// Orphans lists links whose venue submission failed, oldest first. Their
// local orders still exist and will never receive venue fills.
func (b *Bridge) Orphans() []Link {
	b.mu.Lock()
	defer b.mu.Unlock()

	var orphans []Link
	for _, link := range b.byLocal {
		if link.State == LinkOrphaned {
			orphans = append(orphans, *link)
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		return orphans[i].SubmittedAt.Before(orphans[j].SubmittedAt)
	})
	return orphans
}

func (b *Bridge) countSubmission(result string) {
	if b.metrics != nil {
		b.metrics.BridgeSubmissions.WithLabelValues(result).Inc()
	}
}

func (b *Bridge) countReconcile(result string) {
	if b.metrics != nil {
		b.metrics.BridgeReconciles.WithLabelValues(result).Inc()
	}
}
