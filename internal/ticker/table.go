package ticker

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Entry is one row of the ticker table.
type Entry struct {
	TickerID   int64
	Symbol     string
	Name       string
	Type       string
	Exchange   string
	ExchangeID int64
}

// Table maps human-friendly identifiers (symbol, exchange, asset name) to
// ticker ids. Keys are compared case-insensitively.
type Table struct {
	entries     []Entry
	symbols     map[string]int64
	names       map[string]int64
	exchanges   map[string]int64
	exchangeIDs map[int64]int64
}

func emptyTable() *Table {
	return &Table{
		symbols:     make(map[string]int64),
		names:       make(map[string]int64),
		exchanges:   make(map[string]int64),
		exchangeIDs: make(map[int64]int64),
	}
}

// Load reads the ticker table CSV. Each row has six fields:
// ticker_id, symbol, name, type, exchange, exchange_id. Rows with the
// wrong field count or unparsable ids are skipped with a warning. A
// missing file yields an empty table, not an error.
func Load(path string, log zerolog.Logger) (*Table, error) {
	t := emptyTable()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("ticker table not found, lookups disabled")
			return t, nil
		}
		return nil, fmt.Errorf("open ticker table %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ticker table %s: %w", path, err)
	}

	for i, row := range rows {
		if len(row) != 6 {
			log.Warn().Int("row", i+1).Int("fields", len(row)).Msg("skipping malformed ticker row")
			continue
		}

		tickerID, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			log.Warn().Int("row", i+1).Str("ticker_id", row[0]).Msg("skipping row with bad ticker id")
			continue
		}
		exchangeID, err := strconv.ParseInt(strings.TrimSpace(row[5]), 10, 64)
		if err != nil {
			log.Warn().Int("row", i+1).Str("exchange_id", row[5]).Msg("skipping row with bad exchange id")
			continue
		}

		e := Entry{
			TickerID:   tickerID,
			Symbol:     strings.ToUpper(strings.TrimSpace(row[1])),
			Name:       strings.ToUpper(strings.TrimSpace(row[2])),
			Type:       strings.ToUpper(strings.TrimSpace(row[3])),
			Exchange:   strings.ToUpper(strings.TrimSpace(row[4])),
			ExchangeID: exchangeID,
		}
		t.entries = append(t.entries, e)
		t.symbols[e.Symbol] = e.TickerID
		t.names[e.Name] = e.TickerID
		t.exchanges[e.Exchange] = e.TickerID
		t.exchangeIDs[e.ExchangeID] = e.TickerID
	}

	log.Info().Int("tickers", len(t.symbols)).Str("path", path).Msg("ticker table loaded")
	return t, nil
}

// LookupTickerID resolves an identifier by trying, in order: ticker
// symbol, exchange name, asset name.
func (t *Table) LookupTickerID(input string) (int64, bool) {
	key := strings.ToUpper(strings.TrimSpace(input))
	if id, ok := t.symbols[key]; ok {
		return id, true
	}
	if id, ok := t.exchanges[key]; ok {
		return id, true
	}
	if id, ok := t.names[key]; ok {
		return id, true
	}
	return 0, false
}

// ExchangeIDFor returns the exchange id recorded for a ticker id.
func (t *Table) ExchangeIDFor(tickerID int64) (int64, bool) {
	for _, e := range t.entries {
		if e.TickerID == tickerID {
			return e.ExchangeID, true
		}
	}
	return 0, false
}

// Entries returns all loaded rows ordered by ticker id.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].TickerID < out[j].TickerID })
	return out
}

// Len reports the number of loaded rows.
func (t *Table) Len() int {
	return len(t.entries)
}
