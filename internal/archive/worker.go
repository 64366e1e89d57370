package archive

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"ordertrack/internal/observability"
)

// Worker drains the archive channel and batch-upserts order rows into
// Postgres. The channel is fed with non-blocking sends, so the ledger
// never stalls on the archive; the archive can always be rebuilt from the
// snapshot file, which is why retries are bounded and a failing batch is
// eventually dropped rather than blocking forever.
type Worker struct {
	writer       *Writer
	inputChan    <-chan OrderRecord
	batchSize    int
	flushTimeout time.Duration
	maxRetries   int
	log          zerolog.Logger
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan OrderRecord,
	batchSize int,
	flushTimeout time.Duration,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		maxRetries:   5,
		log:          log,
		metrics:      metrics,
	}
}

// Run batches incoming records and flushes when the batch is full or the
// flush timeout expires. Blocks until ctx is cancelled or the channel is
// closed; a final flush runs on the way out.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]OrderRecord, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				w.flushWithRetry(context.Background(), batch)
			}
			return ctx.Err()

		case rec, ok := <-w.inputChan:
			if !ok {
				if len(batch) > 0 {
					w.flushWithRetry(context.Background(), batch)
				}
				return nil
			}

			batch = append(batch, rec)
			if len(batch) >= w.batchSize {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff up to maxRetries, then
// drops the batch.
func (w *Worker) flushWithRetry(ctx context.Context, batch []OrderRecord) {
	deduped := dedupe(batch)
	backoff := 100 * time.Millisecond

	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("rows", len(deduped)).
				Msg("archive flush retry")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		start := time.Now()
		err := w.writer.UpsertBatch(ctx, deduped)
		if err == nil {
			if w.metrics != nil {
				w.metrics.ArchiveRowsWritten.Add(float64(len(deduped)))
				w.metrics.ArchiveBatchDuration.Observe(time.Since(start).Seconds())
			}
			return
		}

		w.log.Error().Err(err).Int("rows", len(deduped)).Msg("archive batch write failed")
		if w.metrics != nil {
			w.metrics.ArchiveErrors.WithLabelValues("write").Inc()
		}
	}

	w.log.Error().Int("rows", len(deduped)).Msg("archive batch dropped after retries")
	if w.metrics != nil {
		w.metrics.ArchiveDrops.Add(float64(len(deduped)))
	}
}

// dedupe keeps only the last record per order number so a single INSERT
// never touches the same row twice.
func dedupe(batch []OrderRecord) []OrderRecord {
	last := make(map[int64]int, len(batch))
	for i, r := range batch {
		last[r.OrderNumber] = i
	}

	out := make([]OrderRecord, 0, len(last))
	for i, r := range batch {
		if last[r.OrderNumber] == i {
			out = append(out, r)
		}
	}
	return out
}
