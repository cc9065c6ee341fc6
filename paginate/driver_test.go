package paginate_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/n4jet/neo4j-export/graphclient"
	"github.com/n4jet/neo4j-export/graphtest"
	"github.com/n4jet/neo4j-export/n4jeterr"
	"github.com/n4jet/neo4j-export/paginate"
	"github.com/n4jet/neo4j-export/value"
)

func keysetBuilder(table string) paginate.QueryBuilder {
	return func(strategy paginate.Strategy, batchSize int, lastID *paginate.KeysetID, skip uint64) (string, map[string]any) {
		if strategy == paginate.StrategyKeyset {
			after := ""
			if lastID != nil {
				after = lastID.Elemish
			}
			return "SELECT * FROM " + table + " WHERE id > $after_id ORDER BY id LIMIT $limit",
				map[string]any{"after_id": after, "limit": batchSize}
		}
		return "SELECT * FROM " + table + " SKIP $skip LIMIT $limit",
			map[string]any{"skip": int(skip), "limit": batchSize}
	}
}

func extractElementID(rec graphclient.Record) (paginate.KeysetID, bool) {
	v, ok := rec.Get("element_id")
	if !ok || v.Kind != value.KindString || v.Str == "" {
		return paginate.KeysetID{}, false
	}
	return paginate.ElementishID(v.Str), true
}

func countingHandler(t *testing.T) paginate.RecordHandler[[]string] {
	return func(_ context.Context, rec graphclient.Record, state []string) ([]string, error) {
		v, ok := rec.Get("element_id")
		require.True(t, ok)
		return append(state, v.Str), nil
	}
}

func TestDriver_KeysetExhaustsAllRecordsNoDuplicatesNoOmissions(t *testing.T) {
	runner := graphtest.NewMockRunner()
	for i := 0; i < 237; i++ {
		runner.AddNode("n"+itoa(i), []string{"Thing"}, nil)
	}

	d := &paginate.Driver[[]string]{
		EntityName: "Nodes",
		Runner:     runner,
		Builder:    keysetBuilder("nodes"),
		ExtractID:  extractElementID,
		BatchSize:  50,
		Handler:    countingHandler(t),
	}

	result, err := d.Run(context.Background(), graphclient.Version5x, nil)
	require.NoError(t, err)
	require.Equal(t, paginate.StrategyKeyset, result.Strategy)
	require.Len(t, result.State, 237)

	seen := map[string]bool{}
	for _, id := range result.State {
		require.False(t, seen[id], "no duplicates")
		seen[id] = true
	}
}

func TestDriver_FallsBackToSkipLimitWhenVersionUnknown(t *testing.T) {
	runner := graphtest.NewMockRunner()
	runner.AddNode("n1", nil, nil)
	runner.AddNode("n2", nil, nil)

	d := &paginate.Driver[[]string]{
		EntityName: "Nodes",
		Runner:     runner,
		Builder:    keysetBuilder("nodes"),
		ExtractID:  extractElementID,
		BatchSize:  10,
		Handler:    countingHandler(t),
	}

	result, err := d.Run(context.Background(), graphclient.VersionUnknown, nil)
	require.NoError(t, err)
	require.Equal(t, paginate.StrategySkipLimit, result.Strategy)
	require.Len(t, result.State, 2)
}

func TestDriver_FallsBackToSkipLimitWhenNoBuilder(t *testing.T) {
	runner := graphtest.NewMockRunner()
	runner.AddNode("n1", nil, nil)

	staticBuilder := func(strategy paginate.Strategy, batchSize int, lastID *paginate.KeysetID, skip uint64) (string, map[string]any) {
		return "SELECT * FROM nodes SKIP $skip LIMIT $limit", map[string]any{"skip": int(skip), "limit": batchSize}
	}

	d := &paginate.Driver[[]string]{
		EntityName: "Nodes",
		Runner:     runner,
		Builder:    staticBuilder,
		BatchSize:  10,
		Handler:    countingHandler(t),
	}
	result, err := d.Run(context.Background(), graphclient.Version5x, nil)
	require.NoError(t, err)
	require.Equal(t, paginate.StrategySkipLimit, result.Strategy)
}

func TestDriver_PaginationErrorWhenCursorCannotAdvance(t *testing.T) {
	runner := graphtest.NewMockRunner()
	// Records with no element_id: extraction will always fail.
	for i := 0; i < 10; i++ {
		runner.Nodes = append(runner.Nodes, graphclient.MapRecord{})
	}

	d := &paginate.Driver[int]{
		EntityName: "Nodes",
		Runner:     runner,
		Builder:    keysetBuilder("nodes"),
		ExtractID:  extractElementID,
		BatchSize:  10,
		Handler: func(_ context.Context, _ graphclient.Record, state int) (int, error) {
			return state + 1, nil
		},
	}

	_, err := d.Run(context.Background(), graphclient.Version5x, 0)
	require.Error(t, err)
	var typed *n4jeterr.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, n4jeterr.KindPagination, typed.Kind())
}

func TestDriver_RetriesRetryableErrorThenSucceeds(t *testing.T) {
	runner := graphtest.NewMockRunner()
	runner.AddNode("n1", nil, nil)
	runner.FailNextRun = 2
	runner.FailErr = n4jeterr.New(n4jeterr.KindConnection, "transient dial failure")

	d := &paginate.Driver[[]string]{
		EntityName:    "Nodes",
		Runner:        runner,
		Builder:       keysetBuilder("nodes"),
		ExtractID:     extractElementID,
		BatchSize:     10,
		MaxRetries:    3,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 5 * time.Millisecond,
		Handler:       countingHandler(t),
		Logger:        zerolog.Nop(),
	}
	result, err := d.Run(context.Background(), graphclient.Version5x, nil)
	require.NoError(t, err)
	require.Len(t, result.State, 1)
}

func TestDriver_NonRetryableErrorAbortsImmediately(t *testing.T) {
	runner := graphtest.NewMockRunner()
	runner.FailNextRun = 1
	runner.FailErr = n4jeterr.New(n4jeterr.KindQuery, "syntax error")

	d := &paginate.Driver[int]{
		EntityName: "Nodes",
		Runner:     runner,
		Builder:    keysetBuilder("nodes"),
		BatchSize:  10,
		MaxRetries: 5,
		Handler: func(_ context.Context, _ graphclient.Record, state int) (int, error) {
			return state, nil
		},
		Logger: zerolog.Nop(),
	}
	_, err := d.Run(context.Background(), graphclient.Version5x, 0)
	require.Error(t, err)
	var typed *n4jeterr.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, n4jeterr.KindQuery, typed.Kind())
}

func TestDriver_CancellationReturnsPartialProgress(t *testing.T) {
	runner := graphtest.NewMockRunner()
	for i := 0; i < 100; i++ {
		runner.AddNode("n"+itoa(i), nil, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	d := &paginate.Driver[int]{
		EntityName: "Nodes",
		Runner:     runner,
		Builder:    keysetBuilder("nodes"),
		ExtractID:  extractElementID,
		BatchSize:  10,
		Handler: func(_ context.Context, _ graphclient.Record, state int) (int, error) {
			count++
			if count == 15 {
				cancel()
			}
			return state + 1, nil
		},
	}
	result, err := d.Run(ctx, graphclient.Version5x, 0)
	require.NoError(t, err)
	require.True(t, result.Cancelled)
	require.Less(t, result.Processed, uint64(100))
}

func TestKeysetID_CompareMixedShapesErrors(t *testing.T) {
	_, err := paginate.NumericID(1).Compare(paginate.ElementishID("x"))
	require.Error(t, err)
}

func TestPerformanceTracker_TrendClassification(t *testing.T) {
	tr := paginate.NewPerformanceTracker("Nodes", nil)
	// 30 batches at a constant 10ms each -> 3 samples, all equal -> constant.
	for i := 0; i < 30; i++ {
		tr.RecordBatch(paginate.StrategyKeyset, 10*time.Millisecond)
	}
	m := tr.GetMetrics(paginate.StrategyKeyset)
	require.Equal(t, "constant", m.Trend)
	require.Equal(t, uint64(30), m.BatchCount)
}

func TestPerformanceTracker_ExponentialTrend(t *testing.T) {
	tr := paginate.NewPerformanceTracker("Nodes", nil)
	durations := []time.Duration{
		10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond,
		10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond, // sample1=10ms
		20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond,
		20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond, 20 * time.Millisecond, // sample2=20ms
		50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond,
		50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond, // sample3=50ms
	}
	for _, d := range durations {
		tr.RecordBatch(paginate.StrategyKeyset, d)
	}
	m := tr.GetMetrics(paginate.StrategyKeyset)
	require.Equal(t, "exponential", m.Trend)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
