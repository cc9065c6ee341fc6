// Package paginate implements the generic batched reader from spec.md §4.6:
// version-aware keyset pagination over nodes and relationships, with
// SKIP/LIMIT fallback, per-batch timing, cooperative cancellation, and
// bounded retry with backoff for transient per-batch failures.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/n4jet/neo4j-export/graphclient"
	"github.com/n4jet/neo4j-export/n4jeterr"
)

// RecordHandler folds one fetched record into accumulated state H and
// returns the new state. Keyset ids are not returned by the handler: the
// Driver extracts them separately through its ExtractID function, and a
// failed extraction counts toward the unprocessable-row check in spec.md
// §4.6.
type RecordHandler[H any] func(ctx context.Context, rec graphclient.Record, state H) (H, error)

// ProgressFunc is invoked at most once per ProgressInterval with the
// entity name, records processed so far, and an optional total hint
// (nil when no total-count query was configured), per spec.md §4.6.
type ProgressFunc func(entityName string, recordsProcessed uint64, totalHint *int64)

// Driver is the generic batched reader from spec.md §4.6, parameterized by
// accumulated handler state H.
type Driver[H any] struct {
	EntityName      string // "Nodes" | "Relationships"
	Runner          graphclient.Runner
	TotalCountQuery string // optional
	Builder         QueryBuilder
	ExtractID       KeysetIDExtractor
	BatchSize       int
	QueryTimeout    time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	MaxRetryDelay   time.Duration
	Tracker         *PerformanceTracker
	Progress        ProgressFunc
	ProgressInterval time.Duration // default 30s

	Handler RecordHandler[H]
	Logger  zerolog.Logger
}

// Result is what Run returns: the final accumulated handler state, the
// strategy actually used, total records processed, and whether the run was
// cancelled partway through (spec.md §4.6's "Ok(partial_progress)").
type Result[H any] struct {
	State     H
	Strategy  Strategy
	Processed uint64
	Cancelled bool
}

// Run drives the batch loop. Builder must be set: every batch's query is
// built through it, and the Driver has no static-query mode, so a nil
// Builder is not a SkipLimit fallback. Keyset is selected when version is
// known; otherwise SkipLimit.
func (d *Driver[H]) Run(ctx context.Context, version graphclient.Version, initial H) (Result[H], error) {
	strategy := StrategySkipLimit
	if d.Builder != nil && version != graphclient.VersionUnknown {
		strategy = StrategyKeyset
	}
	if strategy == StrategySkipLimit {
		d.Logger.Warn().Str("entity", d.EntityName).Msg(
			"keyset pagination unavailable; falling back to SKIP/LIMIT, which is O(n^2) on large datasets")
	}

	progressInterval := d.ProgressInterval
	if progressInterval <= 0 {
		progressInterval = 30 * time.Second
	}

	totalHint, err := d.queryTotalHint(ctx)
	if err != nil {
		return Result[H]{State: initial, Strategy: strategy}, err
	}

	state := initial
	var lastID *KeysetID
	var skip uint64
	var processed uint64
	lastProgressAt := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return Result[H]{State: state, Strategy: strategy, Processed: processed, Cancelled: true}, nil
		}

		query, params := d.Builder(strategy, d.BatchSize, lastID, skip)

		start := time.Now()
		cur, err := d.runWithRetry(ctx, query, params)
		if err != nil {
			return Result[H]{State: state, Strategy: strategy, Processed: processed}, err
		}

		batchCount := 0
		batchMaxID := lastID
		unprocessableIDs := 0
		for {
			if err := ctx.Err(); err != nil {
				return Result[H]{State: state, Strategy: strategy, Processed: processed, Cancelled: true}, nil
			}
			rec, ok, err := cur.Fetch(ctx)
			if err != nil {
				return Result[H]{State: state, Strategy: strategy, Processed: processed}, n4jeterr.Wrap(
					n4jeterr.KindQuery, fmt.Sprintf("fetching %s batch", d.EntityName), err)
			}
			if !ok {
				break
			}

			state, err = d.Handler(ctx, rec, state)
			if err != nil {
				return Result[H]{State: state, Strategy: strategy, Processed: processed}, err
			}
			batchCount++
			processed++

			if strategy == StrategyKeyset && d.ExtractID != nil {
				if id, ok := d.ExtractID(rec); ok {
					if batchMaxID == nil {
						batchMaxID = &id
					} else if cmp, cmpErr := batchMaxID.Compare(id); cmpErr != nil {
						return Result[H]{State: state, Strategy: strategy, Processed: processed}, n4jeterr.Wrap(
							n4jeterr.KindPagination, "mixed keyset id shapes", cmpErr)
					} else if cmp < 0 {
						batchMaxID = &id
					}
				} else {
					unprocessableIDs++
				}
			}

			if err := ctx.Err(); err != nil {
				return Result[H]{State: state, Strategy: strategy, Processed: processed, Cancelled: true}, nil
			}
			if time.Since(lastProgressAt) >= progressInterval && d.Progress != nil {
				d.Progress(d.EntityName, processed, totalHint)
				lastProgressAt = time.Now()
			}
		}
		if _, err := cur.Consume(ctx); err != nil {
			return Result[H]{State: state, Strategy: strategy, Processed: processed}, n4jeterr.Wrap(
				n4jeterr.KindQuery, fmt.Sprintf("consuming %s batch summary", d.EntityName), err)
		}

		if d.Tracker != nil {
			d.Tracker.RecordBatch(strategy, time.Since(start))
		}

		lastBatchFull := batchCount == d.BatchSize

		if strategy == StrategyKeyset {
			advanced := batchMaxID != nil && (lastID == nil || batchMaxID.String() != lastID.String())
			if lastBatchFull && !advanced {
				return Result[H]{State: state, Strategy: strategy, Processed: processed}, n4jeterr.New(
					n4jeterr.KindPagination,
					fmt.Sprintf("%s: keyset cursor failed to advance across a full batch of %d rows (%d unprocessable)",
						d.EntityName, batchCount, unprocessableIDs))
			}
			lastID = batchMaxID
		} else {
			skip += uint64(d.BatchSize)
		}

		if !lastBatchFull {
			if d.Progress != nil {
				d.Progress(d.EntityName, processed, totalHint)
			}
			return Result[H]{State: state, Strategy: strategy, Processed: processed}, nil
		}
	}
}

func (d *Driver[H]) queryTotalHint(ctx context.Context) (*int64, error) {
	if d.TotalCountQuery == "" {
		return nil, nil
	}
	cur, err := d.runWithRetry(ctx, d.TotalCountQuery, nil)
	if err != nil {
		return nil, err
	}
	rec, ok, err := cur.Fetch(ctx)
	if err != nil || !ok {
		return nil, nil //nolint:nilerr // a missing total-count result degrades to "no hint", not a fatal error
	}
	v, ok := rec.Get("total")
	if !ok {
		return nil, nil
	}
	var total int64
	switch {
	case v.Kind.String() == "int":
		total = v.Int
	case v.Kind.String() == "uint":
		total = int64(v.Uint)
	default:
		return nil, nil
	}
	_, _ = cur.Consume(ctx)
	return &total, nil
}

// runWithRetry runs one query with the configured per-query timeout,
// retrying retryable errors (ConnectionError, TimeoutError) up to
// MaxRetries with exponential backoff and ±10% jitter, per spec.md §5.
func (d *Driver[H]) runWithRetry(ctx context.Context, query string, params map[string]any) (graphclient.Cursor, error) {
	delay := d.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := d.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var lastErr error
	attempts := d.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		runCtx := ctx
		var cancel context.CancelFunc
		if d.QueryTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, d.QueryTimeout)
		}
		cur, err := d.Runner.Run(runCtx, query, params)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return cur, nil
		}
		lastErr = err

		kind := classify(err)
		if !kind.Retryable() || attempt == attempts-1 {
			return nil, n4jeterr.Wrap(kind, fmt.Sprintf("%s batch query", d.EntityName), err)
		}

		d.Logger.Warn().Str("entity", d.EntityName).Int("attempt", attempt+1).Err(err).Msg("retrying batch query")
		sleep := jitter(delay)
		select {
		case <-ctx.Done():
			return nil, n4jeterr.New(n4jeterr.KindCancelled, "cancelled during retry backoff")
		case <-time.After(sleep):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return nil, n4jeterr.Wrap(n4jeterr.KindConnection, fmt.Sprintf("%s batch query", d.EntityName), lastErr)
}

// classify maps an opaque error from the Runner into a Kind. A Runner that
// already returns *n4jeterr.Error is respected as-is; anything else is
// treated as a retryable ConnectionError, the conservative default for an
// unclassified transport failure.
func classify(err error) n4jeterr.Kind {
	var typed *n4jeterr.Error
	if errors.As(err, &typed) {
		return typed.ErrKind
	}
	return n4jeterr.KindConnection
}

// jitter applies ±10% random jitter to d, per spec.md §5.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	delta := float64(d) * 0.10
	offset := (rand.Float64()*2 - 1) * delta
	return time.Duration(float64(d) + offset)
}
