package ingestor

import (
	"context"
	"log"

	altmath "github.com/pkg/math"
)

// DefaultBatchSize is the number of fact rows applied per transaction when
// no batch size is configured
const DefaultBatchSize = 64

// ApplyReport summarizes the outcome of applying a set of fact rows
type ApplyReport struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	Errors   []error
}

func (r *ApplyReport) merge(other *ApplyReport) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}

// Executor applies resolved fact rows to the store. Rows are grouped by fact
// kind and written in batches, each batch in its own transaction: a failing
// batch rolls back alone and never undoes previously committed ones.
// Transient store failures retry the whole batch with backoff.
type Executor struct {
	Store     Store
	Backoff   BackoffPolicy
	BatchSize int
	Log       *log.Logger
}

// Apply writes the given rows to the store and reports the outcome
func (e *Executor) Apply(ctx context.Context, rows []FactRow) *ApplyReport {
	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	grouped := make(map[FactKind][]FactRow)
	for _, row := range rows {
		grouped[row.Kind()] = append(grouped[row.Kind()], row)
	}

	report := &ApplyReport{}
	// fixed order so dimension-lighter kinds do not starve behind movements
	for _, kind := range []FactKind{KindMovement, KindCompositionSet, KindFeedback, KindDisturbance} {
		kindRows := grouped[kind]
		for start := 0; start < len(kindRows); start += batchSize {
			end := altmath.Min(start+batchSize, len(kindRows))
			batch := kindRows[start:end]
			batchReport, err := e.applyBatch(ctx, batch)
			if err != nil {
				report.Failed += len(batch)
				report.Errors = append(report.Errors, err)
				if e.Log != nil {
					e.Log.Printf("batch of %d %s rows failed: %s", len(batch), kind, err)
				}
				continue
			}
			report.merge(batchReport)
		}
	}
	return report
}

func (e *Executor) applyBatch(ctx context.Context, batch []FactRow) (*ApplyReport, error) {
	var report *ApplyReport
	err := e.Backoff.Retry(ctx, func() error {
		tx, err := e.Store.Begin()
		if err != nil {
			return err
		}

		attempt := &ApplyReport{}
		for _, row := range batch {
			delta, err := row.Apply(tx)
			if err != nil {
				tx.Rollback()
				return err
			}
			attempt.Inserted += delta.Inserted
			attempt.Updated += delta.Updated
			attempt.Skipped += delta.Skipped
		}
		if err := tx.Commit(); err != nil {
			tx.Rollback()
			return err
		}
		report = attempt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
