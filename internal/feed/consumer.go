package feed

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"ordertrack/internal/ledger"
	"ordertrack/internal/observability"
	"ordertrack/internal/service"
)

// Consumer drains raw fill reports and routes them into the ledger through
// the serialized service.
//
// Ack policy: accepted fills, terminal no-ops, and overfills are all ACK'd
// (redelivery cannot make an overfilling report valid — it is logged at
// error level instead). An unknown order number is NAK'd: the order may
// still arrive through another path, so the report gets redelivered up to
// the consumer's max_deliver.
type Consumer struct {
	svc     *service.OrderService
	in      <-chan RawReport
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewConsumer(svc *service.OrderService, in <-chan RawReport, log zerolog.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{svc: svc, in: in, log: log, metrics: metrics}
}

// Run blocks until ctx is cancelled or the report channel is closed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-c.in:
			if !ok {
				return nil
			}
			c.handle(raw)
		}
	}
}

func (c *Consumer) handle(raw RawReport) {
	report, err := ParseReport(raw.Data)
	if err != nil {
		c.log.Error().Err(err).Str("subject", raw.Subject).Msg("malformed fill report")
		c.count("malformed")
		raw.Ack()
		return
	}

	outcome, err := c.svc.Fill(report.OrderNumber, report.FillPrice, report.FillQuantity)
	switch {
	case errors.Is(err, ledger.ErrOrderNotFound):
		c.log.Warn().
			Int64("order_number", report.OrderNumber).
			Msg("fill report for unknown order, requeueing")
		c.count("unknown_order")
		raw.Nak()

	case outcome == ledger.FillRejectedOverfill:
		c.log.Error().Err(err).
			Int64("order_number", report.OrderNumber).
			Float64("fill_quantity", report.FillQuantity).
			Msg("fill report exceeds remaining quantity")
		c.count("overfill")
		raw.Ack()

	case outcome == ledger.FillRejectedTerminal:
		c.count("terminal")
		raw.Ack()

	case err != nil:
		c.log.Error().Err(err).Int64("order_number", report.OrderNumber).Msg("fill report rejected")
		c.count("error")
		raw.Ack()

	default:
		c.count("accepted")
		raw.Ack()
	}
}

func (c *Consumer) count(result string) {
	if c.metrics != nil {
		c.metrics.FeedReports.WithLabelValues(result).Inc()
	}
}
