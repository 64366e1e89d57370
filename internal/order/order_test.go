package order_test

import (
	"errors"
	"testing"
	"time"

	"ordertrack/internal/order"
)

func TestNew_StartsOpen(t *testing.T) {
	o := order.New(1, order.Terms{TickerID: 1001, Quantity: 100, Price: 50.00})

	if o.Status() != order.StatusOpen {
		t.Errorf("status: got %v, want Open", o.Status())
	}
	if o.FilledQuantity() != 0 {
		t.Errorf("filled quantity: got %v, want 0", o.FilledQuantity())
	}
	if o.RemainingQuantity() != 100 {
		t.Errorf("remaining quantity: got %v, want 100", o.RemainingQuantity())
	}
	if o.AverageFillPrice() != 0 {
		t.Errorf("average fill price with no fills: got %v, want 0", o.AverageFillPrice())
	}
	if !o.NeedsFills() {
		t.Error("new order should need fills")
	}
}

func TestRecordFill_PartialThenComplete(t *testing.T) {
	o := order.New(1, order.Terms{TickerID: 1001, Quantity: 100, Price: 50.00})

	if err := o.RecordFill(49.95, 60); err != nil {
		t.Fatalf("partial fill: %v", err)
	}
	if o.Status() != order.StatusPartiallyFilled {
		t.Errorf("status after partial: got %v, want Partially Filled", o.Status())
	}
	if o.FilledQuantity() != 60 || o.RemainingQuantity() != 40 {
		t.Errorf("after partial: filled=%v remaining=%v", o.FilledQuantity(), o.RemainingQuantity())
	}

	if err := o.RecordFill(50.05, 40); err != nil {
		t.Fatalf("completing fill: %v", err)
	}
	if o.Status() != order.StatusFilled {
		t.Errorf("status after complete: got %v, want Filled", o.Status())
	}
	if o.RemainingQuantity() != 0 {
		t.Errorf("remaining after complete: got %v, want 0", o.RemainingQuantity())
	}
	if o.NeedsFills() {
		t.Error("filled order should not need fills")
	}
}

func TestRecordFill_SingleFillGoesStraightToFilled(t *testing.T) {
	o := order.New(1, order.Terms{TickerID: 1001, Quantity: 100, Price: 50.00})

	if err := o.RecordFill(50.00, 100); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if o.Status() != order.StatusFilled {
		t.Errorf("status: got %v, want Filled", o.Status())
	}
}

func TestAverageFillPrice_QuantityWeighted(t *testing.T) {
	o := order.New(1, order.Terms{TickerID: 1001, Quantity: 100, Price: 50.00})

	if err := o.RecordFill(49.00, 60); err != nil {
		t.Fatal(err)
	}
	if err := o.RecordFill(51.00, 40); err != nil {
		t.Fatal(err)
	}

	// (49*60 + 51*40) / 100 = 49.80
	if got := o.AverageFillPrice(); got != 49.80 {
		t.Errorf("average fill price: got %v, want 49.80", got)
	}
	if o.Status() != order.StatusFilled {
		t.Errorf("status: got %v, want Filled", o.Status())
	}
}

func TestRecordFill_RejectsOverfill(t *testing.T) {
	o := order.New(1, order.Terms{TickerID: 1001, Quantity: 100, Price: 50.00})

	err := o.RecordFill(50.00, 101)
	if !errors.Is(err, order.ErrFillExceedsRemaining) {
		t.Fatalf("got %v, want ErrFillExceedsRemaining", err)
	}
	if o.FilledQuantity() != 0 {
		t.Errorf("filled quantity after rejected fill: got %v, want 0", o.FilledQuantity())
	}
	if o.Status() != order.StatusOpen {
		t.Errorf("status after rejected fill: got %v, want Open", o.Status())
	}
}

func TestRecordFill_RejectsOverfillOfRemainder(t *testing.T) {
	o := order.New(1, order.Terms{TickerID: 1001, Quantity: 100, Price: 50.00})

	if err := o.RecordFill(50.00, 60); err != nil {
		t.Fatal(err)
	}
	err := o.RecordFill(50.00, 41)
	if !errors.Is(err, order.ErrFillExceedsRemaining) {
		t.Fatalf("got %v, want ErrFillExceedsRemaining", err)
	}
	if o.FilledQuantity() != 60 {
		t.Errorf("filled quantity unchanged: got %v, want 60", o.FilledQuantity())
	}
}

func TestRecordFill_RejectsTerminalOrder(t *testing.T) {
	o := order.New(1, order.Terms{TickerID: 1001, Quantity: 100, Price: 50.00})

	if err := o.RecordFill(50.00, 100); err != nil {
		t.Fatal(err)
	}
	err := o.RecordFill(51.00, 10)
	if !errors.Is(err, order.ErrOrderFilled) {
		t.Fatalf("got %v, want ErrOrderFilled", err)
	}
	if o.FilledQuantity() != 100 {
		t.Errorf("filled quantity unchanged: got %v, want 100", o.FilledQuantity())
	}
}

func TestFills_ReturnsCopyInAppendOrder(t *testing.T) {
	o := order.New(1, order.Terms{TickerID: 1001, Quantity: 100, Price: 50.00})
	if err := o.RecordFill(49.00, 30); err != nil {
		t.Fatal(err)
	}
	if err := o.RecordFill(51.00, 20); err != nil {
		t.Fatal(err)
	}

	fills := o.Fills()
	if len(fills) != 2 {
		t.Fatalf("fills: got %d, want 2", len(fills))
	}
	if fills[0].Price != 49.00 || fills[1].Price != 51.00 {
		t.Errorf("fills out of order: %+v", fills)
	}

	fills[0].Quantity = 999
	if o.FilledQuantity() != 50 {
		t.Error("mutating the returned slice must not affect the order")
	}
}

func TestReplayFill_BypassesValidation(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	o := order.Restore(7, order.Terms{TickerID: 1001, Quantity: 100, Price: 50.00}, created)

	at := created.Add(time.Minute)
	o.ReplayFill(50.00, 100, at)

	if o.Status() != order.StatusFilled {
		t.Errorf("status: got %v, want Filled", o.Status())
	}
	if o.CreatedAt() != created {
		t.Errorf("created at: got %v, want %v", o.CreatedAt(), created)
	}
	if got := o.Fills()[0].FilledAt; got != at {
		t.Errorf("fill timestamp: got %v, want %v", got, at)
	}
}

func TestTerms_Validate(t *testing.T) {
	cases := []struct {
		name    string
		terms   order.Terms
		wantErr bool
	}{
		{"valid", order.Terms{TickerID: 1, Quantity: 100, Price: 50}, false},
		{"valid with fee", order.Terms{TickerID: 1, Quantity: 100, Price: 50, TransactionFee: 1.25}, false},
		{"zero quantity", order.Terms{TickerID: 1, Quantity: 0, Price: 50}, true},
		{"negative quantity", order.Terms{TickerID: 1, Quantity: -5, Price: 50}, true},
		{"zero price", order.Terms{TickerID: 1, Quantity: 100, Price: 0}, true},
		{"negative fee", order.Terms{TickerID: 1, Quantity: 100, Price: 50, TransactionFee: -1}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.terms.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestParseStatus_RoundTrip(t *testing.T) {
	for _, s := range []order.Status{order.StatusOpen, order.StatusPartiallyFilled, order.StatusFilled} {
		got, err := order.ParseStatus(s.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", s.String(), err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %v, want %v", s.String(), got, s)
		}
	}

	if _, err := order.ParseStatus("Cancelled"); err == nil {
		t.Error("ParseStatus should reject unknown status text")
	}
}

func TestTransactionFee_Informational(t *testing.T) {
	o := order.New(1, order.Terms{TickerID: 1, Quantity: 100, Price: 50, TransactionFee: 2.50})
	if err := o.RecordFill(50.00, 100); err != nil {
		t.Fatal(err)
	}

	// The fee never changes fill economics.
	if o.AverageFillPrice() != 50.00 {
		t.Errorf("average fill price: got %v, want 50.00", o.AverageFillPrice())
	}
	if o.FilledQuantity() != 100 {
		t.Errorf("filled quantity: got %v, want 100", o.FilledQuantity())
	}
	if o.TransactionFee() != 2.50 {
		t.Errorf("transaction fee: got %v, want 2.50", o.TransactionFee())
	}
}
