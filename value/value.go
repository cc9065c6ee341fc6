// Package value defines the closed tagged union used to represent arbitrary
// property-graph values inside the export pipeline. Every value the database
// driver can hand back — nulls, numbers, temporals, spatial points, nested
// graph elements — is converted into a Value at the boundary so the rest of
// the pipeline never needs a type switch on a driver type.
package value

import "sort"

// Kind tags the active field of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindSpecialFloat // NaN, +Inf, -Inf
	KindString
	KindBytes
	KindTemporal
	KindPoint
	KindList
	KindMap
	KindNode
	KindRelationship
	KindPath
	KindUnrecognized
)

// String returns a human-readable tag name, used in "_type" fields for
// unrecognized values and in log messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindSpecialFloat:
		return "special_float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTemporal:
		return "temporal"
	case KindPoint:
		return "point"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindNode:
		return "node"
	case KindRelationship:
		return "relationship"
	case KindPath:
		return "path"
	case KindUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// TemporalKind distinguishes the seven temporal shapes the source driver may
// hand back. Only Date values are exempt from the nanosecond-truncation rule
// in spec.md §4.3.1.
type TemporalKind int

const (
	TemporalDate TemporalKind = iota
	TemporalTime
	TemporalLocalTime
	TemporalDateTime
	TemporalLocalDateTime
	TemporalOffsetTime
	TemporalDuration
)

// Temporal carries a driver-rendered ISO-8601 string tagged with its temporal
// kind. The 100ns truncation is applied by the caller that built this Value,
// before the string is stored; the serializer does not re-parse ISO strings.
type Temporal struct {
	Kind TemporalKind
	// ISO8601 is the already-rendered, nanosecond-truncated representation.
	// Constructing a Temporal is the driver adapter's responsibility; the
	// core only ever carries the final string forward.
	ISO8601 string
}

// Point is a spatial value. Z is only meaningful when HasZ is true; a NaN Z
// with HasZ=false is rendered without a "z" field per spec.md §4.3.
type Point struct {
	SRID int32
	X, Y float64
	Z    float64
	HasZ bool
}

// Node is a property-graph node as seen by the core. Labels preserve source
// order for the top-level record but are independently sorted by the hasher.
type Node struct {
	ElementID  string
	Labels     []string
	Properties map[string]Value
}

// SortedLabels returns a new, lexicographically sorted copy of Labels. The
// hasher requires this; the top-level record requires source order, so the
// two must never share backing storage.
func (n Node) SortedLabels() []string {
	out := make([]string, len(n.Labels))
	copy(out, n.Labels)
	sort.Strings(out)
	return out
}

// Relationship is a property-graph relationship as seen by the core.
type Relationship struct {
	ElementID      string
	Type           string
	StartElementID string
	EndElementID   string
	Properties     map[string]Value
}

// Path is an alternating Node/Relationship/.../Node sequence. Nodes has one
// more element than Relationships in the well-formed case (spec.md §3); the
// serializer degrades gracefully when that invariant is violated.
type Path struct {
	Nodes         []Node
	Relationships []Relationship
}

// Value is the tagged union. Only the field matching Kind is meaningful; all
// others are zero. Map/List hold child Values directly (not pointers) since
// values are consumed top-down once per record and never shared.
type Value struct {
	Kind Kind

	Bool    bool
	Int     int64
	Uint    uint64
	Float   float64 // KindFloat only; KindSpecialFloat uses FloatSpecial
	FloatSpecial FloatSpecialKind
	Str     string
	Bytes   []byte
	Temporal Temporal
	Point   Point
	List    []Value
	// Map preserves input order in Keys so duplicate-key suffixing
	// (spec.md §3 invariant) is deterministic; Props holds the resolved,
	// already-unique-keyed entries in the same order as Keys.
	Keys  []string
	Props map[string]Value

	Node Node
	Rel  Relationship
	Path Path

	// Unrecognized carries the runtime type name when the driver handed
	// back something the adapter could not classify (spec.md §4.3.7).
	Unrecognized string
}

// FloatSpecialKind distinguishes the three non-finite float renderings.
type FloatSpecialKind int

const (
	SpecialNaN FloatSpecialKind = iota
	SpecialPosInf
	SpecialNegInf
)

// Null returns the null Value.
func Null() Value { return Value{Kind: KindNull} }

// BoolOf wraps a bool.
func BoolOf(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// IntOf wraps a signed integer.
func IntOf(i int64) Value { return Value{Kind: KindInt, Int: i} }

// UintOf wraps an unsigned integer.
func UintOf(u uint64) Value { return Value{Kind: KindUint, Uint: u} }

// FloatOf wraps a finite float. Callers MUST pre-classify NaN/Inf via
// SpecialFloatOf; FloatOf does not itself check for non-finite values so
// that hot-path construction from driver values stays branch-free when the
// caller already knows the value is finite.
func FloatOf(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// SpecialFloatOf wraps NaN or ±Infinity.
func SpecialFloatOf(k FloatSpecialKind) Value { return Value{Kind: KindSpecialFloat, FloatSpecial: k} }

// StringOf wraps a string.
func StringOf(s string) Value { return Value{Kind: KindString, Str: s} }

// BytesOf wraps a byte slice.
func BytesOf(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// TemporalOf wraps a Temporal.
func TemporalOf(t Temporal) Value { return Value{Kind: KindTemporal, Temporal: t} }

// PointOf wraps a Point.
func PointOf(p Point) Value { return Value{Kind: KindPoint, Point: p} }

// ListOf wraps a list of Values.
func ListOf(vs []Value) Value { return Value{Kind: KindList, List: vs} }

// MapOf builds a Map Value from ordered keys and a resolved property map.
// Callers that need duplicate-key suffixing should do it before calling
// MapOf (see serialize.CanonicalizeKeys), keeping this constructor a plain
// assembly step.
func MapOf(keys []string, props map[string]Value) Value {
	return Value{Kind: KindMap, Keys: keys, Props: props}
}

// NodeOf wraps a Node.
func NodeOf(n Node) Value { return Value{Kind: KindNode, Node: n} }

// RelationshipOf wraps a Relationship.
func RelationshipOf(r Relationship) Value { return Value{Kind: KindRelationship, Rel: r} }

// PathOf wraps a Path.
func PathOf(p Path) Value { return Value{Kind: KindPath, Path: p} }

// UnrecognizedOf wraps a value the adapter could not classify.
func UnrecognizedOf(typeName string) Value {
	return Value{Kind: KindUnrecognized, Unrecognized: typeName}
}

// IsTemporal reports whether v carries date/time/duration semantics.
func IsTemporal(v Value) bool { return v.Kind == KindTemporal }

// IsFiniteNumeric reports whether v is an integer or finite float.
func IsFiniteNumeric(v Value) bool {
	return v.Kind == KindInt || v.Kind == KindUint || v.Kind == KindFloat
}

// IsGraphElement reports whether v is a node, relationship, or path.
func IsGraphElement(v Value) bool {
	return v.Kind == KindNode || v.Kind == KindRelationship || v.Kind == KindPath
}
