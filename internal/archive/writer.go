package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// OrderRecord is one denormalized row in archive.orders, mirroring an
// order's full state at the time of the last mutation. The fill history is
// carried as a JSON document.
type OrderRecord struct {
	OrderNumber       int64
	TickerID          int64
	ExchangeID        int64
	OriginalQuantity  float64
	OrderPrice        float64
	Status            string
	FilledQuantity    float64
	RemainingQuantity float64
	AverageFillPrice  float64
	TransactionFee    float64
	Fills             []byte // JSON array of fill records
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Writer upserts order rows into Postgres using multi-row INSERT.
type Writer struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// UpsertBatch writes a batch of order records. Later states of the same
// order replace earlier ones via ON CONFLICT.
func (w *Writer) UpsertBatch(ctx context.Context, records []OrderRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `INSERT INTO archive.orders
		(order_number, ticker_id, exchange_id, original_quantity, order_price,
		 status, filled_quantity, remaining_quantity, average_fill_price,
		 transaction_fee, fills, created_at, updated_at)
		VALUES `

	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*13)

	for i, r := range records {
		base := i * 13
		placeholders := make([]string, 13)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			r.OrderNumber, r.TickerID, r.ExchangeID, r.OriginalQuantity, r.OrderPrice,
			r.Status, r.FilledQuantity, r.RemainingQuantity, r.AverageFillPrice,
			r.TransactionFee, r.Fills, r.CreatedAt, r.UpdatedAt,
		)
	}

	query += strings.Join(values, ", ")
	query += ` ON CONFLICT (order_number) DO UPDATE SET
		status = EXCLUDED.status,
		filled_quantity = EXCLUDED.filled_quantity,
		remaining_quantity = EXCLUDED.remaining_quantity,
		average_fill_price = EXCLUDED.average_fill_price,
		fills = EXCLUDED.fills,
		updated_at = EXCLUDED.updated_at`

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}
