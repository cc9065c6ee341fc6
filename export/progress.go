package export

import (
	"sort"
	"time"

	"github.com/n4jet/neo4j-export/metadata"
)

// Progress is spec.md §3's ExportProgress: mutated only by the pagination
// driver (via the orchestrator's handler closures), never read
// concurrently by anything but the optional progress callback and the
// resource watchdog.
type Progress struct {
	RecordsProcessed uint64
	BytesWritten     uint64
	StartTime        time.Time
}

// LabelStats is spec.md §3's per-label accounting tuple. The orchestrator
// keeps one table for node labels, mutated only inside pass 1, and one for
// relationship types, mutated only inside pass 2.
type LabelStats struct {
	Count       uint64
	Bytes       uint64
	FirstSeenMs int64
	TotalMs     int64
}

// LabelStatsTable accumulates LabelStats per label across a pass, crediting
// bytes/len(labels) to each label a record carries, per spec.md §4.7
// (relationship records pass their single type as the one label).
type LabelStatsTable struct {
	stats map[string]*LabelStats
}

// NewLabelStatsTable creates an empty table.
func NewLabelStatsTable() *LabelStatsTable {
	return &LabelStatsTable{stats: make(map[string]*LabelStats)}
}

// Record attributes one serialized node's byte size across its labels.
func (t *LabelStatsTable) Record(labels []string, recordBytes int, nowMs int64) {
	if len(labels) == 0 {
		return
	}
	share := uint64(recordBytes) / uint64(len(labels))
	for _, l := range labels {
		s, ok := t.stats[l]
		if !ok {
			s = &LabelStats{FirstSeenMs: nowMs}
			t.stats[l] = s
		}
		s.Count++
		s.Bytes += share
		s.TotalMs = nowMs - s.FirstSeenMs
	}
}

// Snapshot returns a copy of the accumulated per-label stats, keyed by
// label.
func (t *LabelStatsTable) Snapshot() map[string]LabelStats {
	out := make(map[string]LabelStats, len(t.stats))
	for k, v := range t.stats {
		out[k] = *v
	}
	return out
}

// FileStatistics renders the table's contents as spec.md §4.9's
// export_manifest.file_statistics entries, sorted by label for a
// deterministic file.
func (t *LabelStatsTable) FileStatistics() []metadata.FileStatistic {
	labels := make([]string, 0, len(t.stats))
	for l := range t.stats {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	out := make([]metadata.FileStatistic, 0, len(labels))
	for _, l := range labels {
		s := t.stats[l]
		out = append(out, metadata.FileStatistic{
			Label:            l,
			RecordCount:      int64(s.Count),
			BytesWritten:     int64(s.Bytes),
			ExportDurationMs: float64(s.TotalMs),
		})
	}
	return out
}
