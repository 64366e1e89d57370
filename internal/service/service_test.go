package service_test

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"ordertrack/internal/archive"
	"ordertrack/internal/ledger"
	"ordertrack/internal/order"
	"ordertrack/internal/service"
)

func newService(t *testing.T, archiveChan chan<- archive.OrderRecord) *service.OrderService {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.json")
	return service.New(ledger.NewManager(zerolog.Nop()), path, zerolog.Nop(), nil, archiveChan)
}

func TestPlaceOrder_ValidatesTerms(t *testing.T) {
	svc := newService(t, nil)

	if _, err := svc.PlaceOrder(order.Terms{TickerID: 1, Quantity: 0, Price: 50}); err == nil {
		t.Error("zero quantity should be rejected at the service boundary")
	}
	if _, err := svc.PlaceOrder(order.Terms{TickerID: 1, Quantity: 100, Price: -1}); err == nil {
		t.Error("negative price should be rejected at the service boundary")
	}

	view, err := svc.PlaceOrder(order.Terms{TickerID: 1, Quantity: 100, Price: 50})
	if err != nil {
		t.Fatalf("valid terms rejected: %v", err)
	}
	if view.OrderNumber != 1 || view.Status != order.StatusOpen {
		t.Errorf("view: got %+v", view)
	}
}

func TestFill_OutcomePropagation(t *testing.T) {
	svc := newService(t, nil)
	view, err := svc.PlaceOrder(order.Terms{TickerID: 1, Quantity: 100, Price: 50})
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := svc.Fill(view.OrderNumber, 50.00, 100)
	if err != nil || outcome != ledger.FillAccepted {
		t.Fatalf("fill: outcome=%v err=%v", outcome, err)
	}

	outcome, err = svc.Fill(view.OrderNumber, 51.00, 10)
	if err != nil {
		t.Fatalf("terminal fill must be a no-op, got error %v", err)
	}
	if outcome != ledger.FillRejectedTerminal {
		t.Errorf("outcome: got %v, want rejected_terminal", outcome)
	}

	_, err = svc.Fill(404, 50.00, 1)
	if !errors.Is(err, ledger.ErrOrderNotFound) {
		t.Errorf("unknown order: got %v, want ErrOrderNotFound", err)
	}
}

func TestConcurrentPlacements_IdentitiesGapFree(t *testing.T) {
	svc := newService(t, nil)

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan int64, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := svc.PlaceOrder(order.Terms{TickerID: 1, Quantity: 10, Price: 5})
			if err != nil {
				t.Error(err)
				return
			}
			ids <- view.OrderNumber
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate identity %d", id)
		}
		seen[id] = true
	}
	for i := int64(1); i <= n; i++ {
		if !seen[i] {
			t.Errorf("identity %d missing: assignment should be gap-free", i)
		}
	}
	if svc.NextOrderNumber() != n+1 {
		t.Errorf("next identity: got %d, want %d", svc.NextOrderNumber(), n+1)
	}
}

func TestArchiveEmission(t *testing.T) {
	ch := make(chan archive.OrderRecord, 8)
	svc := newService(t, ch)

	view, err := svc.PlaceOrder(order.Terms{TickerID: 7, Quantity: 100, Price: 50, TransactionFee: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Fill(view.OrderNumber, 49.50, 40); err != nil {
		t.Fatal(err)
	}

	if len(ch) != 2 {
		t.Fatalf("archive records emitted: got %d, want 2 (placement + fill)", len(ch))
	}

	first := <-ch
	if first.OrderNumber != 1 || first.Status != "Open" {
		t.Errorf("placement record: %+v", first)
	}

	second := <-ch
	if second.Status != "Partially Filled" || second.FilledQuantity != 40 {
		t.Errorf("fill record: %+v", second)
	}

	var fills []map[string]interface{}
	if err := json.Unmarshal(second.Fills, &fills); err != nil {
		t.Fatalf("fills payload is not JSON: %v", err)
	}
	if len(fills) != 1 || fills[0]["fill_price"] != 49.5 {
		t.Errorf("fills payload: %v", fills)
	}
}

func TestArchiveEmission_DropsWhenFull(t *testing.T) {
	ch := make(chan archive.OrderRecord, 1)
	svc := newService(t, ch)

	if _, err := svc.PlaceOrder(order.Terms{TickerID: 1, Quantity: 10, Price: 5}); err != nil {
		t.Fatal(err)
	}
	// Channel now full; the next emission must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := svc.PlaceOrder(order.Terms{TickerID: 2, Quantity: 10, Price: 5}); err != nil {
			t.Error(err)
		}
	}()
	<-done

	if len(ch) != 1 {
		t.Errorf("channel length: got %d, want 1 (second record dropped)", len(ch))
	}
}

func TestSaveLoad_ThroughService(t *testing.T) {
	svc := newService(t, nil)
	view, err := svc.PlaceOrder(order.Terms{TickerID: 1001, Quantity: 100, Price: 50})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Fill(view.OrderNumber, 49.80, 100); err != nil {
		t.Fatal(err)
	}
	if err := svc.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !svc.Load() {
		t.Fatal("Load returned false")
	}
	got, err := svc.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != order.StatusFilled || got.AverageFillPrice != 49.80 {
		t.Errorf("reloaded view: %+v", got)
	}
	if svc.NextOrderNumber() != 2 {
		t.Errorf("next identity after reload: got %d, want 2", svc.NextOrderNumber())
	}
}
