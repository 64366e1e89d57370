package archive

import (
	"context"
	"database/sql"
	"fmt"
)

// QueryService provides read-only access to the archive for external
// tooling. It reflects the last archived state of each order, which can
// lag the in-memory ledger by however much sits in the archive channel.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

const orderColumns = `order_number, ticker_id, exchange_id, original_quantity,
	order_price, status, filled_quantity, remaining_quantity,
	average_fill_price, transaction_fee, fills, created_at, updated_at`

// GetOrder returns the archived state of one order.
func (qs *QueryService) GetOrder(ctx context.Context, orderNumber int64) (*OrderRecord, error) {
	row := qs.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM archive.orders WHERE order_number = $1`,
		orderNumber,
	)

	rec, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("archived order #%d not found", orderNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("query archived order #%d: %w", orderNumber, err)
	}
	return rec, nil
}

// OpenOrders returns every archived order whose status is not Filled, in
// identity order.
func (qs *QueryService) OpenOrders(ctx context.Context) ([]OrderRecord, error) {
	rows, err := qs.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM archive.orders
		 WHERE status <> 'Filled'
		 ORDER BY order_number ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query open orders: %w", err)
	}
	defer rows.Close()

	var records []OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(s scanner) (*OrderRecord, error) {
	var rec OrderRecord
	err := s.Scan(
		&rec.OrderNumber, &rec.TickerID, &rec.ExchangeID, &rec.OriginalQuantity,
		&rec.OrderPrice, &rec.Status, &rec.FilledQuantity, &rec.RemainingQuantity,
		&rec.AverageFillPrice, &rec.TransactionFee, &rec.Fills, &rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
