package telemetry_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/n4jet/neo4j-export/paginate"
	"github.com/n4jet/neo4j-export/telemetry"
)

func TestRecorder_RecordBatchIncrementsCounterAndHistogram(t *testing.T) {
	r := telemetry.NewRecorder()
	r.RecordBatch("Nodes", paginate.StrategyKeyset, 15*time.Millisecond)
	r.RecordBatch("Nodes", paginate.StrategyKeyset, 20*time.Millisecond)

	count := testutil.ToFloat64(r.BatchesTotal.WithLabelValues("Nodes", "keyset"))
	require.Equal(t, float64(2), count)
}

func TestRecorder_ImplementsPaginateRecorder(t *testing.T) {
	var _ paginate.Recorder = telemetry.NewRecorder()
}
