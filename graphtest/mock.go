// Package graphtest provides an in-memory fake implementing graphclient's
// interfaces, plus small harness helpers, for exercising the pagination
// driver and export orchestrator without a real Neo4j instance.
package graphtest

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/n4jet/neo4j-export/graphclient"
	"github.com/n4jet/neo4j-export/value"
)

// MockRunner is an in-memory graphclient.Runner backed by two record sets
// ("nodes" and "rels"), queried via a tiny convention: the query string
// must contain the literal substring "FROM nodes" or "FROM rels" so the
// mock knows which set to paginate, and a query containing "COUNT" returns a
// single {"total": n} row for that set; everything else about the query text
// is ignored, since this fake never parses Cypher.
type MockRunner struct {
	mu      sync.Mutex
	Nodes   []graphclient.MapRecord
	Rels    []graphclient.MapRecord
	Version graphclient.Version

	// FailNextRun, when > 0, makes the next N calls to Run return err
	// instead of a cursor, decrementing on each call. Used to exercise
	// retry/backoff behavior.
	FailNextRun int
	FailErr     error
}

// NewMockRunner creates an empty MockRunner defaulting to Version5x.
func NewMockRunner() *MockRunner {
	return &MockRunner{Version: graphclient.Version5x}
}

func (m *MockRunner) ProbeVersion(_ context.Context) (graphclient.Version, error) {
	return m.Version, nil
}

// AddNode appends a node record with the given element id, labels, and
// properties, keyed the way the pagination query builder in this module's
// tests expects: "element_id", "labels", "properties".
func (m *MockRunner) AddNode(elementID string, labels []string, props map[string]value.Value) {
	m.Nodes = append(m.Nodes, graphclient.MapRecord{
		"element_id": value.StringOf(elementID),
		"labels":     labelsValue(labels),
		"properties": value.MapOf(sortedKeysOf(props), props),
	})
}

// AddRelationship appends a relationship record.
func (m *MockRunner) AddRelationship(elementID, relType, startID, endID string, props map[string]value.Value) {
	m.Rels = append(m.Rels, graphclient.MapRecord{
		"element_id":       value.StringOf(elementID),
		"type":             value.StringOf(relType),
		"start_element_id": value.StringOf(startID),
		"end_element_id":   value.StringOf(endID),
		"properties":       value.MapOf(sortedKeysOf(props), props),
	})
}

func labelsValue(labels []string) value.Value {
	vs := make([]value.Value, len(labels))
	for i, l := range labels {
		vs[i] = value.StringOf(l)
	}
	return value.ListOf(vs)
}

func sortedKeysOf(m map[string]value.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MockRunner) Run(_ context.Context, query string, params map[string]any) (graphclient.Cursor, error) {
	m.mu.Lock()
	if m.FailNextRun > 0 {
		m.FailNextRun--
		err := m.FailErr
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	var set []graphclient.MapRecord
	switch {
	case strings.Contains(query, "FROM nodes"):
		set = m.Nodes
	case strings.Contains(query, "FROM rels"):
		set = m.Rels
	default:
		set = nil
	}

	if strings.Contains(query, "COUNT") {
		return &sliceCursor{records: []graphclient.Record{
			graphclient.MapRecord{"total": value.IntOf(int64(len(set)))},
		}}, nil
	}

	skip := 0
	if raw, ok := params["skip"]; ok {
		skip = toInt(raw)
	}
	limit := len(set)
	if raw, ok := params["limit"]; ok {
		limit = toInt(raw)
	}
	afterID, hasAfter := params["after_id"]

	var page []graphclient.Record
	if hasAfter {
		// Keyset: rows ordered by element_id, strictly after after_id.
		afterStr := toStr(afterID)
		ordered := make([]graphclient.MapRecord, len(set))
		copy(ordered, set)
		sort.SliceStable(ordered, func(i, j int) bool {
			a, _ := ordered[i].Get("element_id")
			b, _ := ordered[j].Get("element_id")
			return a.Str < b.Str
		})
		for _, r := range ordered {
			idVal, _ := r.Get("element_id")
			if afterStr != "" && idVal.Str <= afterStr {
				continue
			}
			page = append(page, r)
			if len(page) >= limit {
				break
			}
		}
	} else {
		end := skip + limit
		if end > len(set) {
			end = len(set)
		}
		if skip < len(set) {
			for _, r := range set[skip:end] {
				page = append(page, r)
			}
		}
	}
	return &sliceCursor{records: page}, nil
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

type sliceCursor struct {
	records []graphclient.Record
	idx     int
}

func (c *sliceCursor) Fetch(_ context.Context) (graphclient.Record, bool, error) {
	if c.idx >= len(c.records) {
		return nil, false, nil
	}
	r := c.records[c.idx]
	c.idx++
	return r, true, nil
}

func (c *sliceCursor) Consume(_ context.Context) (graphclient.Summary, error) {
	return graphclient.Summary{RecordCount: len(c.records)}, nil
}
