package ticker_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"ordertrack/internal/ticker"
)

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticker_table.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTable(t,
		"1001,AAPL,Apple Inc,Stock,NASDAQ,1\n"+
			"1002,MSFT,Microsoft,Stock,NASDAQ,1\n"+
			"1003,VOD,Vodafone,Stock,LSE,2\n")

	table, err := ticker.Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("rows: got %d, want 3", table.Len())
	}

	entries := table.Entries()
	if entries[0].TickerID != 1001 || entries[0].Symbol != "AAPL" {
		t.Errorf("first entry: %+v", entries[0])
	}
	if entries[2].Exchange != "LSE" || entries[2].ExchangeID != 2 {
		t.Errorf("third entry: %+v", entries[2])
	}
}

func TestLookupTickerID(t *testing.T) {
	path := writeTable(t,
		"1001,AAPL,Apple Inc,Stock,NASDAQ,1\n"+
			"1003,VOD,Vodafone,Stock,LSE,2\n")

	table, err := ticker.Load(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		input string
		want  int64
	}{
		{"AAPL", 1001},      // symbol
		{"aapl", 1001},      // case-insensitive
		{" VOD ", 1003},     // whitespace
		{"LSE", 1003},       // exchange name
		{"VODAFONE", 1003},  // asset name
		{"apple inc", 1001}, // asset name, lowercased
	}
	for _, tc := range cases {
		got, ok := table.LookupTickerID(tc.input)
		if !ok || got != tc.want {
			t.Errorf("LookupTickerID(%q) = %d, %v; want %d", tc.input, got, ok, tc.want)
		}
	}

	if _, ok := table.LookupTickerID("TSLA"); ok {
		t.Error("unknown symbol should not resolve")
	}
}

func TestLoad_SkipsMalformedRows(t *testing.T) {
	path := writeTable(t,
		"1001,AAPL,Apple Inc,Stock,NASDAQ,1\n"+
			"short,row\n"+
			"notanumber,MSFT,Microsoft,Stock,NASDAQ,1\n"+
			"1002,GOOG,Alphabet,Stock,NASDAQ,notanumber\n")

	table, err := ticker.Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() != 1 {
		t.Errorf("rows: got %d, want 1 (malformed rows skipped)", table.Len())
	}
}

func TestLoad_MissingFileYieldsEmptyTable(t *testing.T) {
	table, err := ticker.Load(filepath.Join(t.TempDir(), "absent.csv"), zerolog.Nop())
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("rows: got %d, want 0", table.Len())
	}
	if _, ok := table.LookupTickerID("AAPL"); ok {
		t.Error("empty table should resolve nothing")
	}
}

func TestExchangeIDFor(t *testing.T) {
	path := writeTable(t, "1001,AAPL,Apple Inc,Stock,NASDAQ,7\n")

	table, err := ticker.Load(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if id, ok := table.ExchangeIDFor(1001); !ok || id != 7 {
		t.Errorf("ExchangeIDFor(1001) = %d, %v; want 7", id, ok)
	}
	if _, ok := table.ExchangeIDFor(9999); ok {
		t.Error("unknown ticker id should not resolve")
	}
}
