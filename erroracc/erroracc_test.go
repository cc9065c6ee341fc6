package erroracc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/n4jet/neo4j-export/erroracc"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAccumulator_DedupByKeyIncrementsCount(t *testing.T) {
	a := erroracc.New(fixedClock(time.Unix(0, 0)))
	a.Track(erroracc.LevelWarning, "serialization", "node", "ValueTruncationError", "n1", "string too long")
	a.Track(erroracc.LevelWarning, "serialization", "node", "ValueTruncationError", "n2", "string too long")
	a.Track(erroracc.LevelWarning, "serialization", "node", "ValueTruncationError", "n3", "string too long")

	recs := a.Flush(1)
	require.Len(t, recs, 1)
	require.Equal(t, uint64(3), recs[0].Count)
	require.Equal(t, "n1", recs[0].ElementID, "first-seen element id is retained as the sample")
}

func TestAccumulator_DistinctKeysProduceSeparateRecords(t *testing.T) {
	a := erroracc.New(fixedClock(time.Unix(0, 0)))
	a.Track(erroracc.LevelWarning, "serialization", "node", "ValueTruncationError", "n1", "msg1")
	a.Track(erroracc.LevelError, "access", "relationship", "QueryError", "r1", "msg2")

	recs := a.Flush(1)
	require.Len(t, recs, 2)
}

func TestAccumulator_OverflowAt101stDistinctKey(t *testing.T) {
	a := erroracc.New(fixedClock(time.Unix(0, 0)))
	for i := 0; i < erroracc.MaxDistinctKeys; i++ {
		a.Track(erroracc.LevelWarning, "serialization", "node", string(rune('A'+i%26))+string(rune(i)), "n", "m")
	}
	require.False(t, a.Overflowed())

	a.Track(erroracc.LevelError, "access", "node", "OneMoreDistinctKind", "n", "overflow trigger")
	require.True(t, a.Overflowed())

	recs := a.Flush(1)
	require.Len(t, recs, erroracc.MaxDistinctKeys+1)

	last := recs[len(recs)-1]
	require.Equal(t, map[string]any{"truncated": true}, last.Details)
}

func TestAccumulator_FlushResetsState(t *testing.T) {
	a := erroracc.New(fixedClock(time.Unix(0, 0)))
	a.Track(erroracc.LevelWarning, "k", "e", "c", "id", "m")
	require.Len(t, a.Flush(1), 1)
	require.Empty(t, a.Flush(2), "second flush with no new tracks should be empty")
}

func TestAccumulator_ErrorAndWarningCounts(t *testing.T) {
	a := erroracc.New(fixedClock(time.Unix(0, 0)))
	a.Track(erroracc.LevelWarning, "k1", "e", "c", "id", "m")
	a.Track(erroracc.LevelWarning, "k1", "e", "c", "id2", "m")
	a.Track(erroracc.LevelError, "k2", "e", "c", "id3", "m")

	require.Equal(t, uint64(2), a.WarningCount())
	require.Equal(t, uint64(1), a.ErrorCount())
}
