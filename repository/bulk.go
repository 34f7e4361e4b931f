package repository

import (
	"context"
	"fmt"
)

// DefaultBatchSize is the number of records sent per statement when the
// caller does not choose one.
const DefaultBatchSize = 100

// BulkOptions tunes a bulk write.
type BulkOptions struct {
	// BatchSize is the number of records per statement.
	BatchSize int

	// ContinueOnError keeps processing remaining batches after a batch
	// fails instead of stopping at the first failure.
	ContinueOnError bool

	// Progress, when set, is invoked after every batch.
	Progress func(BulkProgress)
}

// BulkProgress is a snapshot of a bulk write after one batch.
type BulkProgress struct {
	Processed int
	Total     int
	Batch     int
	Batches   int
	Errors    int
}

// BulkResult summarizes a completed bulk write.
type BulkResult struct {
	Inserted int
	Updated  int
	Skipped  int
	Errors   []error
}

func (o BulkOptions) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return o.BatchSize
}

func batchCount(total, size int) int {
	n := total / size
	if total%size != 0 {
		n++
	}
	return n
}

// BulkInsert inserts the records in batches. Cache invalidation runs once
// after the last batch rather than per batch.
func (r *Repository[T]) BulkInsert(ctx context.Context, entities []*T, opts BulkOptions) (*BulkResult, error) {
	result := &BulkResult{}
	if len(entities) == 0 {
		return result, nil
	}

	now := r.now()
	for _, e := range entities {
		if e == nil {
			return nil, ErrNilEntity
		}
		r.entity(e).StampCreated(r.actor, now)
	}

	size := opts.batchSize()
	batches := batchCount(len(entities), size)

	for i := 0; i < len(entities); i += size {
		end := i + size
		if end > len(entities) {
			end = len(entities)
		}
		batch := entities[i:end]

		if _, err := r.db.NewInsert().Model(&batch).Exec(ctx); err != nil {
			err = fmt.Errorf("repository: bulk insert into %s, batch %d: %w", r.table, i/size+1, err)
			result.Errors = append(result.Errors, err)
			result.Skipped += len(batch)
			r.logger.Error().Err(err).Str("op", "bulk_insert").Msg("batch failed")
			if !opts.ContinueOnError {
				r.invalidate(ctx)
				return result, err
			}
		} else {
			result.Inserted += len(batch)
			if r.tracker != nil {
				for _, e := range batch {
					r.tracker.TrackAdded(r.entity(e))
				}
			}
		}

		if opts.Progress != nil {
			opts.Progress(BulkProgress{
				Processed: end,
				Total:     len(entities),
				Batch:     i/size + 1,
				Batches:   batches,
				Errors:    len(result.Errors),
			})
		}
	}

	r.invalidate(ctx)
	return result, nil
}

// BulkUpdate updates the records in batches. Soft-deleted records are
// immutable and are counted as skipped, matching Update's single-record
// behavior.
func (r *Repository[T]) BulkUpdate(ctx context.Context, entities []*T, opts BulkOptions) (*BulkResult, error) {
	result := &BulkResult{}
	if len(entities) == 0 {
		return result, nil
	}

	now := r.now()
	live := make([]*T, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			return nil, ErrNilEntity
		}
		ent := r.entity(e)
		if ent.GetID() == 0 {
			return nil, ErrNotPersisted
		}
		if ent.Deleted() {
			result.Skipped++
			continue
		}
		ent.StampModified(r.actor, now)
		live = append(live, e)
	}

	size := opts.batchSize()
	batches := batchCount(len(live), size)

	for i := 0; i < len(live); i += size {
		end := i + size
		if end > len(live) {
			end = len(live)
		}
		batch := live[i:end]

		if _, err := r.db.NewUpdate().Model(&batch).Bulk().Exec(ctx); err != nil {
			err = fmt.Errorf("repository: bulk update %s, batch %d: %w", r.table, i/size+1, err)
			result.Errors = append(result.Errors, err)
			result.Skipped += len(batch)
			r.logger.Error().Err(err).Str("op", "bulk_update").Msg("batch failed")
			if !opts.ContinueOnError {
				r.invalidate(ctx)
				return result, err
			}
		} else {
			result.Updated += len(batch)
			if r.tracker != nil {
				for _, e := range batch {
					r.tracker.TrackModified(r.entity(e))
				}
			}
		}

		if opts.Progress != nil {
			opts.Progress(BulkProgress{
				Processed: end,
				Total:     len(live),
				Batch:     i/size + 1,
				Batches:   batches,
				Errors:    len(result.Errors),
			})
		}
	}

	r.invalidate(ctx)
	return result, nil
}
