package export

import (
	"github.com/n4jet/neo4j-export/graphclient"
	"github.com/n4jet/neo4j-export/paginate"
	"github.com/n4jet/neo4j-export/value"
)

// recordToNode extracts a value.Node from a fetched Record, per the field
// convention spec.md §6 assigns the database client adapter: "element_id",
// "labels" (a list of strings), "properties" (a map). ok is false when
// element_id is missing or empty, which the pagination driver's
// KeysetIDExtractor also treats as an unprocessable row.
func recordToNode(rec graphclient.Record) (value.Node, bool) {
	idVal, ok := rec.Get("element_id")
	if !ok || idVal.Kind != value.KindString || idVal.Str == "" {
		return value.Node{}, false
	}
	n := value.Node{ElementID: idVal.Str}
	if labelsVal, ok := rec.Get("labels"); ok && labelsVal.Kind == value.KindList {
		n.Labels = make([]string, 0, len(labelsVal.List))
		for _, l := range labelsVal.List {
			if l.Kind == value.KindString {
				n.Labels = append(n.Labels, l.Str)
			}
		}
	}
	if propsVal, ok := rec.Get("properties"); ok && propsVal.Kind == value.KindMap {
		n.Properties = propsVal.Props
	}
	return n, true
}

// recordToRelationship mirrors recordToNode for relationship rows.
func recordToRelationship(rec graphclient.Record) (value.Relationship, bool) {
	idVal, ok := rec.Get("element_id")
	if !ok || idVal.Kind != value.KindString || idVal.Str == "" {
		return value.Relationship{}, false
	}
	r := value.Relationship{ElementID: idVal.Str}
	if t, ok := rec.Get("type"); ok && t.Kind == value.KindString {
		r.Type = t.Str
	}
	if s, ok := rec.Get("start_element_id"); ok && s.Kind == value.KindString {
		r.StartElementID = s.Str
	}
	if e, ok := rec.Get("end_element_id"); ok && e.Kind == value.KindString {
		r.EndElementID = e.Str
	}
	if propsVal, ok := rec.Get("properties"); ok && propsVal.Kind == value.KindMap {
		r.Properties = propsVal.Props
	}
	return r, true
}

// nodeKeysetID adapts recordToNode into a paginate.KeysetIDExtractor. Every
// source version this engine targets (4.x and 5.x+) exposes element ids as
// strings at the driver boundary, so both shapes are represented as
// Elementish here; a future numeric-native source adapter would extract
// paginate.NumericID instead.
func nodeKeysetID(rec graphclient.Record) (paginate.KeysetID, bool) {
	n, ok := recordToNode(rec)
	if !ok {
		return paginate.KeysetID{}, false
	}
	return paginate.ElementishID(n.ElementID), true
}

// relKeysetID mirrors nodeKeysetID for relationship rows.
func relKeysetID(rec graphclient.Record) (paginate.KeysetID, bool) {
	r, ok := recordToRelationship(rec)
	if !ok {
		return paginate.KeysetID{}, false
	}
	return paginate.ElementishID(r.ElementID), true
}
