package serialize

import (
	"github.com/n4jet/neo4j-export/jsonstream"
	"github.com/n4jet/neo4j-export/value"
)

// embedLevel is the three-tier depth policy from spec.md §4.3.3.
type embedLevel int

const (
	embedDeep embedLevel = iota
	embedShallow
	embedReference
)

func (s *Serializer) embedLevelAt(depth int) embedLevel {
	switch {
	case depth < s.Limits.NestedShallowModeDepth:
		return embedDeep
	case depth < s.Limits.NestedReferenceModeDepth:
		return embedShallow
	default:
		return embedReference
	}
}

// writeEmbeddedNode serializes a Node found as a property value (not a
// top-level record) at the level spec.md §4.3.3 selects for depth.
func (s *Serializer) writeEmbeddedNode(w *jsonstream.Writer, n value.Node, depth int) {
	level := s.embedLevelAt(depth)
	w.BeginObject()
	w.Name("type")
	w.WriteString("node")
	w.Name("element_id")
	w.WriteString(n.ElementID)
	switch level {
	case embedDeep:
		w.Name("labels")
		s.writeLabels(w, n.ElementID, n.Labels, s.Limits.MaxLabelsPerNode)
		w.Name("properties")
		s.writeMap(w, n.Properties, propertyKeysOf(n.Properties), depth+1)
	case embedShallow:
		w.Name("labels")
		s.writeLabels(w, n.ElementID, n.Labels, s.Limits.MaxLabelsPerNode)
		w.Name("property_count")
		w.WriteI64(int64(len(n.Properties)))
	case embedReference:
		w.Name("labels")
		s.writeLabels(w, n.ElementID, n.Labels, s.Limits.MaxLabelsInReferenceMode)
	}
	w.EndObject()
}

// writeEmbeddedRelationship mirrors writeEmbeddedNode for Relationship
// property values.
func (s *Serializer) writeEmbeddedRelationship(w *jsonstream.Writer, r value.Relationship, depth int) {
	level := s.embedLevelAt(depth)
	w.BeginObject()
	w.Name("type")
	w.WriteString("relationship")
	w.Name("element_id")
	w.WriteString(r.ElementID)
	w.Name("label")
	w.WriteString(r.Type)
	switch level {
	case embedDeep:
		w.Name("start_element_id")
		w.WriteString(r.StartElementID)
		w.Name("end_element_id")
		w.WriteString(r.EndElementID)
		w.Name("properties")
		s.writeMap(w, r.Properties, propertyKeysOf(r.Properties), depth+1)
	case embedShallow:
		w.Name("start_element_id")
		w.WriteString(r.StartElementID)
		w.Name("end_element_id")
		w.WriteString(r.EndElementID)
		w.Name("property_count")
		w.WriteI64(int64(len(r.Properties)))
	case embedReference:
		// Reference mode for relationships carries only identity fields,
		// the relationship analogue of a node reference's truncated labels.
	}
	w.EndObject()
}
