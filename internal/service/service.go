package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ordertrack/internal/archive"
	"ordertrack/internal/ledger"
	"ordertrack/internal/observability"
	"ordertrack/internal/order"
)

// OrderService is the single write entry point into the ledger. The
// manager itself does no locking, so every caller that may run on its own
// goroutine (console, fill feed, bridge) goes through here; the mutex is
// held for the duration of each mutating call.
//
// Callers get OrderView copies rather than the live entities, so nothing
// outside the lock can touch an order's fill history.
type OrderService struct {
	mu           sync.Mutex
	log          zerolog.Logger
	metrics      *observability.Metrics
	manager      *ledger.Manager
	snapshotPath string
	archiveChan  chan<- archive.OrderRecord // nil when the archive is disabled
}

// OrderView is an immutable projection of one order.
type OrderView struct {
	OrderNumber       int64
	TickerID          int64
	ExchangeID        int64
	Quantity          float64
	Price             float64
	TransactionFee    float64
	CreatedAt         time.Time
	Status            order.Status
	FilledQuantity    float64
	RemainingQuantity float64
	AverageFillPrice  float64
	Fills             []order.Fill
}

func New(
	manager *ledger.Manager,
	snapshotPath string,
	log zerolog.Logger,
	metrics *observability.Metrics,
	archiveChan chan<- archive.OrderRecord,
) *OrderService {
	return &OrderService{
		log:          log,
		metrics:      metrics,
		manager:      manager,
		snapshotPath: snapshotPath,
		archiveChan:  archiveChan,
	}
}

// PlaceOrder validates the terms and adds an order to the ledger. This is
// the boundary where quantity > 0 and price > 0 are enforced; the ledger
// below accepts any terms.
func (s *OrderService) PlaceOrder(terms order.Terms) (OrderView, error) {
	if err := terms.Validate(); err != nil {
		return OrderView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.manager.AddOrder(terms)
	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
		s.metrics.OpenOrders.Set(float64(len(s.manager.OpenOrders())))
	}

	view := viewOf(o)
	s.emitArchive(view)
	return view, nil
}

// Fill routes a fill to an order and reports the tagged outcome.
func (s *OrderService) Fill(id int64, price, quantity float64) (ledger.FillOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, err := s.manager.FillOrder(id, price, quantity)
	if s.metrics != nil {
		s.metrics.FillsTotal.WithLabelValues(outcome.String()).Inc()
	}
	if err != nil {
		return outcome, err
	}

	if outcome == ledger.FillAccepted {
		if s.metrics != nil {
			s.metrics.OpenOrders.Set(float64(len(s.manager.OpenOrders())))
		}
		if o, getErr := s.manager.GetOrder(id); getErr == nil {
			s.emitArchive(viewOf(o))
		}
	}
	return outcome, nil
}

// Get returns a point-in-time view of one order.
func (s *OrderService) Get(id int64) (OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.manager.GetOrder(id)
	if err != nil {
		return OrderView{}, err
	}
	return viewOf(o), nil
}

// List returns views of all orders in identity order.
func (s *OrderService) List() []OrderView {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.manager.Orders()
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, viewOf(o))
	}
	return views
}

// Open returns views of all orders that still need fills, in identity order.
func (s *OrderService) Open() []OrderView {
	s.mu.Lock()
	defer s.mu.Unlock()

	open := s.manager.OpenOrders()
	views := make([]OrderView, 0, len(open))
	for _, o := range open {
		views = append(views, viewOf(o))
	}
	return views
}

// NextOrderNumber returns the identity the next order will receive.
func (s *OrderService) NextOrderNumber() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager.NextID()
}

// Save writes the snapshot file configured for this service.
func (s *OrderService) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	err := s.manager.Save(s.snapshotPath)
	if s.metrics != nil && err == nil {
		s.metrics.SnapshotSaveDuration.Observe(time.Since(start).Seconds())
		s.metrics.SnapshotOrders.Set(float64(len(s.manager.Orders())))
	}
	return err
}

// Load replays the snapshot file into the ledger. Fails soft like the
// manager: missing or corrupt snapshots log and return false.
func (s *OrderService) Load() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	ok := s.manager.Load(s.snapshotPath)
	if ok {
		if s.metrics != nil {
			s.metrics.SnapshotLoadDuration.Observe(time.Since(start).Seconds())
			s.metrics.OpenOrders.Set(float64(len(s.manager.OpenOrders())))
		}
		for _, o := range s.manager.Orders() {
			s.emitArchive(viewOf(o))
		}
	}
	return ok
}

// emitArchive hands the order's current state to the archive worker with a
// non-blocking send. The archive is a rebuildable mirror, so a full
// channel drops the record rather than stalling the ledger.
// Callers hold s.mu.
func (s *OrderService) emitArchive(v OrderView) {
	if s.archiveChan == nil {
		return
	}

	select {
	case s.archiveChan <- recordOf(v):
	default:
		s.log.Warn().Int64("order_number", v.OrderNumber).Msg("archive channel full, record dropped")
		if s.metrics != nil {
			s.metrics.ArchiveDrops.Inc()
		}
	}
}

func viewOf(o *order.Order) OrderView {
	return OrderView{
		OrderNumber:       o.ID(),
		TickerID:          o.TickerID(),
		ExchangeID:        o.ExchangeID(),
		Quantity:          o.Quantity(),
		Price:             o.Price(),
		TransactionFee:    o.TransactionFee(),
		CreatedAt:         o.CreatedAt(),
		Status:            o.Status(),
		FilledQuantity:    o.FilledQuantity(),
		RemainingQuantity: o.RemainingQuantity(),
		AverageFillPrice:  o.AverageFillPrice(),
		Fills:             o.Fills(),
	}
}

type archivedFill struct {
	FillPrice    float64 `json:"fill_price"`
	FillQuantity float64 `json:"fill_quantity"`
	FilledAt     string  `json:"filled_at"`
}

func recordOf(v OrderView) archive.OrderRecord {
	fills := make([]archivedFill, 0, len(v.Fills))
	for _, f := range v.Fills {
		fills = append(fills, archivedFill{
			FillPrice:    f.Price,
			FillQuantity: f.Quantity,
			FilledAt:     f.FilledAt.Format(time.RFC3339Nano),
		})
	}
	fillsJSON, err := json.Marshal(fills)
	if err != nil {
		fillsJSON = []byte("[]")
	}

	return archive.OrderRecord{
		OrderNumber:       v.OrderNumber,
		TickerID:          v.TickerID,
		ExchangeID:        v.ExchangeID,
		OriginalQuantity:  v.Quantity,
		OrderPrice:        v.Price,
		Status:            v.Status.String(),
		FilledQuantity:    v.FilledQuantity,
		RemainingQuantity: v.RemainingQuantity,
		AverageFillPrice:  v.AverageFillPrice,
		TransactionFee:    v.TransactionFee,
		Fills:             fillsJSON,
		CreatedAt:         v.CreatedAt,
		UpdatedAt:         time.Now(),
	}
}
