package serialize

import (
	"fmt"

	"github.com/n4jet/neo4j-export/jsonstream"
	"github.com/n4jet/neo4j-export/value"
)

// pathMode is the three-tier degradation ladder from spec.md §4.3.4.
type pathMode int

const (
	pathFull pathMode = iota
	pathCompact
	pathIdsOnly
)

func (s *Serializer) pathModeFor(n int) pathMode {
	switch {
	case n <= s.Limits.PathFullModeLimit:
		return pathFull
	case n <= s.Limits.PathCompactModeLimit:
		return pathCompact
	default:
		return pathIdsOnly
	}
}

// writePath implements spec.md §4.3.4: select a degradation mode from
// |nodes|, emit nodes/relationships at that mode's fidelity, then append
// the sequence array every mode shares.
func (s *Serializer) writePath(w *jsonstream.Writer, p value.Path) {
	n := len(p.Nodes)

	if n > s.Limits.MaxPathLength {
		s.trackError(entityTypePath, "ValueTruncationError", "", fmt.Sprintf("path of %d nodes exceeds max_path_length %d", n, s.Limits.MaxPathLength))
		w.BeginObject()
		w.Name("_type")
		w.WriteString("path")
		w.Name("_error")
		w.WriteString("path_too_long")
		w.EndObject()
		return
	}

	if len(p.Relationships) != maxInt(0, n-1) {
		s.trackWarning(entityTypePath, "PathInvariantWarning", "",
			fmt.Sprintf("path has %d nodes and %d relationships; expected %d relationships", n, len(p.Relationships), maxInt(0, n-1)))
	}

	mode := s.pathModeFor(n)

	w.BeginObject()
	w.Name("type")
	w.WriteString("path")
	w.Name("nodes")
	s.writePathNodes(w, p.Nodes, mode)
	w.Name("relationships")
	s.writePathRelationships(w, p.Relationships, mode)
	w.Name("sequence")
	s.writePathSequence(w, p)
	w.EndObject()
}

func (s *Serializer) writePathNodes(w *jsonstream.Writer, nodes []value.Node, mode pathMode) {
	w.BeginArray()
	for _, nd := range nodes {
		switch mode {
		case pathFull:
			w.BeginObject()
			w.Name("element_id")
			w.WriteString(nd.ElementID)
			w.Name("labels")
			s.writeLabels(w, nd.ElementID, nd.Labels, s.Limits.MaxLabelsPerNode)
			w.Name("properties")
			s.writeMap(w, nd.Properties, propertyKeysOf(nd.Properties), 0)
			w.EndObject()
		case pathCompact:
			w.BeginObject()
			w.Name("element_id")
			w.WriteString(nd.ElementID)
			w.Name("labels")
			s.writeLabels(w, nd.ElementID, nd.Labels, s.Limits.MaxLabelsInPathCompact)
			w.EndObject()
		case pathIdsOnly:
			w.WriteString(nd.ElementID)
		}
	}
	w.EndArray()
}

func (s *Serializer) writePathRelationships(w *jsonstream.Writer, rels []value.Relationship, mode pathMode) {
	w.BeginArray()
	for _, r := range rels {
		switch mode {
		case pathIdsOnly:
			w.WriteString(r.ElementID)
		default:
			w.BeginObject()
			w.Name("element_id")
			w.WriteString(r.ElementID)
			w.Name("type")
			w.WriteString(r.Type)
			w.EndObject()
		}
	}
	w.EndArray()
}

// writePathSequence emits the {type, index} interleaving array so
// consumers need not reconstruct node/relationship alternation themselves,
// per spec.md §4.3.4. It walks Nodes[0], Relationships[0], Nodes[1], ...
// independent of any node/relationship count mismatch: this is the
// "serialized best-effort" behavior spec.md §3 and §9 call for when the
// path invariant is violated, simply exhausting whichever side runs out
// first.
func (s *Serializer) writePathSequence(w *jsonstream.Writer, p value.Path) {
	w.BeginArray()
	ni, ri := 0, 0
	for ni < len(p.Nodes) || ri < len(p.Relationships) {
		if ni < len(p.Nodes) {
			w.BeginObject()
			w.Name("type")
			w.WriteString("node")
			w.Name("index")
			w.WriteI64(int64(ni))
			w.EndObject()
			ni++
		}
		if ri < len(p.Relationships) {
			w.BeginObject()
			w.Name("type")
			w.WriteString("relationship")
			w.Name("index")
			w.WriteI64(int64(ri))
			w.EndObject()
			ri++
		}
	}
	w.EndArray()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
