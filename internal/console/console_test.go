package console_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"ordertrack/internal/console"
	"ordertrack/internal/ledger"
	"ordertrack/internal/service"
	"ordertrack/internal/ticker"
)

func runScript(t *testing.T, table *ticker.Table, script string) (*service.OrderService, string, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "orders.json")
	svc := service.New(ledger.NewManager(zerolog.Nop()), path, zerolog.Nop(), nil, nil)

	var out bytes.Buffer
	c := console.New(svc, table, strings.NewReader(script), &out, zerolog.Nop())
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("console run: %v", err)
	}
	return svc, out.String(), path
}

func emptyTable(t *testing.T) *ticker.Table {
	t.Helper()
	table, err := ticker.Load(filepath.Join(t.TempDir(), "absent.csv"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return table
}

func TestAddOrderByDirectID(t *testing.T) {
	script := strings.Join([]string{
		"2",    // add new order
		"1001", // no table, direct ticker id
		"100",  // quantity
		"50",   // price
		"6",    // exit
	}, "\n") + "\n"

	svc, out, path := runScript(t, emptyTable(t), script)

	views := svc.List()
	if len(views) != 1 {
		t.Fatalf("orders: got %d, want 1", len(views))
	}
	if views[0].TickerID != 1001 || views[0].Quantity != 100 || views[0].Price != 50 {
		t.Errorf("order terms: %+v", views[0])
	}
	if !strings.Contains(out, "Created Order #1") {
		t.Errorf("output missing creation confirmation:\n%s", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot should exist after add: %v", err)
	}
}

func TestAddOrderBySymbol(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "ticker_table.csv")
	if err := os.WriteFile(csvPath, []byte("1001,AAPL,Apple Inc,Stock,NASDAQ,3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := ticker.Load(csvPath, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	script := "2\naapl\n100\n50\n6\n"
	svc, out, _ := runScript(t, table, script)

	views := svc.List()
	if len(views) != 1 {
		t.Fatalf("orders: got %d, want 1", len(views))
	}
	if views[0].TickerID != 1001 {
		t.Errorf("ticker id: got %d, want 1001", views[0].TickerID)
	}
	if views[0].ExchangeID != 3 {
		t.Errorf("exchange id: got %d, want 3", views[0].ExchangeID)
	}
	if !strings.Contains(out, "Found ticker ID: 1001") {
		t.Errorf("output missing lookup confirmation:\n%s", out)
	}
}

func TestFillOrder(t *testing.T) {
	script := strings.Join([]string{
		"2", "1001", "100", "50", // add order
		"3", "1", "49.50", "60", // fill 60 of it
		"4", // show open orders
		"6", // exit
	}, "\n") + "\n"

	svc, out, _ := runScript(t, emptyTable(t), script)

	view, err := svc.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if view.FilledQuantity != 60 {
		t.Errorf("filled quantity: got %v, want 60", view.FilledQuantity)
	}
	if !strings.Contains(out, "There are 1 open orders remaining") {
		t.Errorf("output missing open orders line:\n%s", out)
	}
}

func TestFillOrder_RejectsOverfillAtPrompt(t *testing.T) {
	script := strings.Join([]string{
		"2", "1001", "100", "50",
		"3", "1", "49.50", "150", // more than remaining
		"6",
	}, "\n") + "\n"

	svc, out, _ := runScript(t, emptyTable(t), script)

	view, err := svc.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if view.FilledQuantity != 0 {
		t.Errorf("filled quantity: got %v, want 0", view.FilledQuantity)
	}
	if !strings.Contains(out, "Invalid fill quantity!") {
		t.Errorf("output missing rejection:\n%s", out)
	}
}

func TestUnknownTickerCancelsCreation(t *testing.T) {
	script := "2\nTSLA\n6\n"
	svc, out, _ := runScript(t, emptyTable(t), script)

	if got := len(svc.List()); got != 0 {
		t.Errorf("orders: got %d, want 0", got)
	}
	if !strings.Contains(out, "Unknown ticker: TSLA") {
		t.Errorf("output missing unknown ticker message:\n%s", out)
	}
}

func TestEOFSavesAndExits(t *testing.T) {
	// Input ends without an explicit exit choice.
	script := "2\n1001\n100\n50\n"
	_, _, path := runScript(t, emptyTable(t), script)

	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot should exist after EOF exit: %v", err)
	}
}
