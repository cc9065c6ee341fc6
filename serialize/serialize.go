package serialize

import (
	"encoding/base64"
	"fmt"

	"github.com/n4jet/neo4j-export/erroracc"
	"github.com/n4jet/neo4j-export/hashid"
	"github.com/n4jet/neo4j-export/jsonstream"
	"github.com/n4jet/neo4j-export/value"
)

// entityTypeProperty, entityTypeNode, entityTypeRelationship, entityTypePath
// name the entity_type bucket key the error accumulator groups by, matching
// the kind of record being serialized when a failure is tracked.
const (
	entityTypeProperty     = "property"
	entityTypeNode         = "node"
	entityTypeRelationship = "relationship"
	entityTypePath         = "path"
)

// Serializer implements spec.md §4.3's single recursive dispatch from Value
// to JSON. It is stateful only in the sense of holding shared collaborators
// (limits, the error accumulator, a monotonic export_id counter); it never
// retains a reference to any Value or Writer across calls.
type Serializer struct {
	Limits  Limits
	Errors  *erroracc.Accumulator
	nextID  uint64
}

// New creates a Serializer. errs may be nil if the caller does not want
// warnings/errors tracked (e.g. a unit test exercising pure formatting).
func New(limits Limits, errs *erroracc.Accumulator) *Serializer {
	return &Serializer{Limits: limits, Errors: errs}
}

// NodeRecord writes the top-level node record described in spec.md §4.3.5:
// {type, element_id, NET_node_content_hash, export_id, labels, properties}.
// contentHash is the empty string when EnableHashedIDs is false.
func (s *Serializer) NodeRecord(w *jsonstream.Writer, n value.Node, contentHash string) {
	defer s.recoverInto(w, entityTypeNode, n.ElementID)

	w.BeginObject()
	w.Name("type")
	w.WriteString("node")
	w.Name("element_id")
	w.WriteString(n.ElementID)
	if s.Limits.EnableHashedIDs {
		w.Name("NET_node_content_hash")
		w.WriteString(contentHash)
	}
	w.Name("export_id")
	w.WriteU64(s.allocExportID())
	w.Name("labels")
	s.writeLabels(w, n.ElementID, n.Labels, s.Limits.MaxLabelsPerNode)
	w.Name("properties")
	s.writeMap(w, n.Properties, propertyKeysOf(n.Properties), 0)
	w.EndObject()
}

// RelationshipRecord writes the top-level relationship record described in
// spec.md §4.3.6. startHash/endHash are the empty string when either the
// endpoint was unresolved in pass 1 or EnableHashedIDs is false.
func (s *Serializer) RelationshipRecord(w *jsonstream.Writer, r value.Relationship, identityHash, startHash, endHash string) {
	defer s.recoverInto(w, entityTypeRelationship, r.ElementID)

	w.BeginObject()
	w.Name("type")
	w.WriteString("relationship")
	w.Name("element_id")
	w.WriteString(r.ElementID)
	if s.Limits.EnableHashedIDs {
		w.Name("NET_rel_identity_hash")
		w.WriteString(identityHash)
	}
	w.Name("export_id")
	w.WriteU64(s.allocExportID())
	w.Name("label")
	w.WriteString(r.Type)
	w.Name("start_element_id")
	w.WriteString(r.StartElementID)
	w.Name("end_element_id")
	w.WriteString(r.EndElementID)
	w.Name("start_node_content_hash")
	w.WriteString(startHash)
	w.Name("end_node_content_hash")
	w.WriteString(endHash)
	w.Name("properties")
	s.writeMap(w, r.Properties, propertyKeysOf(r.Properties), 0)
	w.EndObject()
}

func (s *Serializer) allocExportID() uint64 {
	s.nextID++
	return s.nextID
}

// propertyKeysOf builds a deterministic key order for a plain
// map[string]value.Value that did not arrive through value.MapOf (and so
// has no independently tracked Keys slice) — the top-level node/relationship
// property maps built by the graph driver adapter. Order is lexicographic,
// which is stable and matches the canonical-hash key order.
func propertyKeysOf(m map[string]value.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Value writes v at nesting depth depth. This is the single recursive
// dispatch point spec.md §9 calls out as deliberately NOT late-bound: one
// switch on Kind, direct recursion, no function-pointer table.
func (s *Serializer) Value(w *jsonstream.Writer, v value.Value, depth int) {
	if depth >= s.Limits.MaxNestedDepth && (v.Kind == value.KindList || v.Kind == value.KindMap ||
		v.Kind == value.KindNode || v.Kind == value.KindRelationship || v.Kind == value.KindPath) {
		s.writeDepthExceeded(w, depth)
		return
	}

	switch v.Kind {
	case value.KindNull:
		w.WriteNull()
	case value.KindBool:
		w.WriteBool(v.Bool)
	case value.KindInt:
		w.WriteI64(v.Int)
	case value.KindUint:
		w.WriteU64(v.Uint)
	case value.KindFloat:
		w.WriteF64(v.Float)
	case value.KindSpecialFloat:
		w.WriteSpecialFloat(specialFloatLiteral(v.FloatSpecial))
	case value.KindString:
		s.writeStringValue(w, v.Str)
	case value.KindBytes:
		s.writeBytesValue(w, v.Bytes)
	case value.KindTemporal:
		w.WriteString(v.Temporal.ISO8601)
	case value.KindPoint:
		s.writePoint(w, v.Point)
	case value.KindList:
		s.writeList(w, v.List, depth)
	case value.KindMap:
		s.writeMap(w, v.Props, v.Keys, depth)
	case value.KindNode:
		s.writeEmbeddedNode(w, v.Node, depth)
	case value.KindRelationship:
		s.writeEmbeddedRelationship(w, v.Rel, depth)
	case value.KindPath:
		s.writePath(w, v.Path)
	case value.KindUnrecognized:
		s.writeUnrecognized(w, v.Unrecognized)
	default:
		s.writeUnrecognized(w, "unknown")
	}
}

func specialFloatLiteral(k value.FloatSpecialKind) string {
	switch k {
	case value.SpecialPosInf:
		return "Infinity"
	case value.SpecialNegInf:
		return "-Infinity"
	default:
		return "NaN"
	}
}

// writeDepthExceeded emits the depth-exceeded marker referenced by spec.md
// §4.1/§4.3.3 and tracks a ValueTruncationError warning.
func (s *Serializer) writeDepthExceeded(w *jsonstream.Writer, depth int) {
	s.trackWarning(entityTypeProperty, "ValueTruncationError", "", fmt.Sprintf("max_nested_depth exceeded at depth %d", depth))
	w.BeginObject()
	w.Name("_truncated")
	w.WriteString("depth_exceeded")
	w.Name("_depth")
	w.WriteI64(int64(depth))
	w.EndObject()
}

// writeStringValue emits s as a JSON string, or a truncation object when s
// exceeds the configured string limit (spec.md §4.3's primitive table).
func (s *Serializer) writeStringValue(w *jsonstream.Writer, str string) {
	runeLen := len([]rune(str))
	if runeLen <= s.Limits.StringLimit {
		w.WriteString(str)
		return
	}
	s.trackWarning(entityTypeProperty, "ValueTruncationError", "", fmt.Sprintf("string length %d exceeds limit %d", runeLen, s.Limits.StringLimit))
	runes := []rune(str)
	prefix := string(runes[:min(s.Limits.StringLimit, len(runes))])
	w.BeginObject()
	w.Name("_truncated")
	w.WriteString("string_too_large")
	w.Name("_length")
	w.WriteI64(int64(runeLen))
	w.Name("_prefix")
	w.WriteString(prefix)
	w.Name("_sha256")
	w.WriteString(hashid.Sha256Hex(str))
	w.EndObject()
}

// writeBytesValue emits b base64-encoded, or a truncation object when b
// exceeds the configured binary limit.
func (s *Serializer) writeBytesValue(w *jsonstream.Writer, b []byte) {
	if len(b) <= s.Limits.BinaryLimit {
		w.WriteString(base64Encode(b))
		return
	}
	s.trackWarning(entityTypeProperty, "ValueTruncationError", "", fmt.Sprintf("binary length %d exceeds limit %d", len(b), s.Limits.BinaryLimit))
	prefix := b[:min(s.Limits.BinaryLimit, len(b))]
	w.BeginObject()
	w.Name("_truncated")
	w.WriteString("binary_too_large")
	w.Name("_length")
	w.WriteI64(int64(len(b)))
	w.Name("_prefix")
	w.WriteString(base64Encode(prefix))
	w.Name("_sha256")
	w.WriteString(hashid.Sha256Hex(string(b)))
	w.EndObject()
}

func (s *Serializer) writePoint(w *jsonstream.Writer, p value.Point) {
	w.BeginObject()
	w.Name("type")
	w.WriteString("Point")
	w.Name("srid")
	w.WriteI64(int64(p.SRID))
	w.Name("x")
	w.WriteF64(p.X)
	w.Name("y")
	w.WriteF64(p.Y)
	if p.HasZ && jsonstream.FloatIsFinite(p.Z) {
		w.Name("z")
		w.WriteF64(p.Z)
	}
	w.EndObject()
}

// writeList implements spec.md §4.3.2: emit up to CollectionLimit items,
// then a single pseudo-element describing the truncation.
func (s *Serializer) writeList(w *jsonstream.Writer, items []value.Value, depth int) {
	w.BeginArray()
	shown := min(len(items), s.Limits.CollectionLimit)
	for i := 0; i < shown; i++ {
		s.Value(w, items[i], depth+1)
	}
	if len(items) > s.Limits.CollectionLimit {
		s.trackWarning(entityTypeProperty, "ValueTruncationError", "", fmt.Sprintf("list of %d items exceeds limit %d", len(items), s.Limits.CollectionLimit))
		w.BeginObject()
		w.Name("_truncated")
		w.WriteString("list_too_large")
		w.Name("_total_items")
		w.WriteI64(int64(len(items)))
		w.Name("_shown_items")
		w.WriteI64(int64(shown))
		w.EndObject()
	}
	w.EndArray()
}

// writeMap implements spec.md §4.3.2's map form of the same truncation
// rule, plus key canonicalization (length cap + duplicate suffixing).
func (s *Serializer) writeMap(w *jsonstream.Writer, props map[string]value.Value, keys []string, depth int) {
	w.BeginObject()
	canon := CanonicalizeKeys(keys)
	shown := min(len(canon), s.Limits.CollectionLimit)
	for i := 0; i < shown; i++ {
		w.Name(canon[i])
		s.Value(w, props[keys[i]], depth+1)
	}
	if len(canon) > s.Limits.CollectionLimit {
		s.trackWarning(entityTypeProperty, "ValueTruncationError", "", fmt.Sprintf("map of %d entries exceeds limit %d", len(canon), s.Limits.CollectionLimit))
		w.Name("_truncated_entries")
		w.BeginObject()
		w.Name("_truncated")
		w.WriteString("map_too_large")
		w.Name("_total_items")
		w.WriteI64(int64(len(canon)))
		w.Name("_shown_items")
		w.WriteI64(int64(shown))
		w.EndObject()
	}
	w.EndObject()
}

func (s *Serializer) writeUnrecognized(w *jsonstream.Writer, typeName string) {
	if typeName == "" {
		typeName = "unknown"
	}
	w.BeginObject()
	w.Name("_type")
	w.WriteString(typeName)
	w.Name("_note")
	w.WriteString("unserializable_type")
	w.EndObject()
}

// writeLabels writes a node's labels array, replacing invalid labels (empty
// or over 1,000 chars) with "_invalid_label" and capping the array at max,
// per spec.md §4.3.5.
func (s *Serializer) writeLabels(w *jsonstream.Writer, elementID string, labels []string, max int) {
	w.BeginArray()
	n := len(labels)
	if max > 0 && n > max {
		n = max
	}
	for i := 0; i < n; i++ {
		l := labels[i]
		if l == "" || len(l) > maxKeyLen {
			s.trackWarning(entityTypeNode, "ValueTruncationError", elementID, "invalid label replaced with _invalid_label")
			l = "_invalid_label"
		}
		w.WriteString(l)
	}
	w.EndArray()
}

func (s *Serializer) trackWarning(entityType, exceptionClass, elementID, message string) {
	if s.Errors == nil {
		return
	}
	s.Errors.Track(erroracc.LevelWarning, "serialization", entityType, exceptionClass, elementID, message)
}

func (s *Serializer) trackError(entityType, exceptionClass, elementID, message string) {
	if s.Errors == nil {
		return
	}
	s.Errors.Track(erroracc.LevelError, "serialization", entityType, exceptionClass, elementID, message)
}

// recoverInto implements spec.md §4.3.8's failure isolation: a panic mid
// top-level record still produces a syntactically valid JSON object. It
// must be the first deferred call in every top-level record writer.
func (s *Serializer) recoverInto(w *jsonstream.Writer, entityType, elementID string) {
	r := recover()
	if r == nil {
		return
	}
	s.trackError(entityType, "SerializationError", elementID, fmt.Sprintf("recovered panic: %v", r))
	if w.TopFrameIsObject() {
		w.Name("_serialization_error")
		w.WriteString(fmt.Sprintf("%v", r))
	}
	w.CloseAllFrames()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// base64Encode is used for Bytes primitive emission (spec.md §4.3: "bytes
// <= limit: base64 string").
func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
