// Package hashid computes the deterministic content-hash identifiers
// described in spec.md §4.4: a SHA-256 over canonicalized label sets and
// property maps for nodes, and over type+endpoints+properties for
// relationships.
package hashid

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/n4jet/neo4j-export/value"
)

// CanonicalJSON renders props as compact JSON with keys sorted by Unicode
// code point, null-valued keys dropped, integers rendered without a decimal
// point, and floats with the minimal lossless decimal representation. It is
// shared by the node hasher and the relationship hasher so both agree on one
// definition of "canonical". The serializer's truncation-marker "_sha256"
// field does not use it: that digest is Sha256Hex of the raw string or bytes.
func CanonicalJSON(props map[string]value.Value) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k, v := range props {
		if v.Kind == value.KindNull {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeCanonicalString(&b, k)
		b.WriteByte(':')
		writeCanonicalValue(&b, props[k])
	}
	b.WriteByte('}')
	return b.String()
}

func writeCanonicalValue(b *strings.Builder, v value.Value) {
	switch v.Kind {
	case value.KindNull:
		b.WriteString("null")
	case value.KindBool:
		if v.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case value.KindInt:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case value.KindUint:
		b.WriteString(strconv.FormatUint(v.Uint, 10))
	case value.KindFloat:
		b.WriteString(strconv.FormatFloat(v.Float, 'g', -1, 64))
	case value.KindSpecialFloat:
		writeCanonicalString(b, specialFloatLiteral(v.FloatSpecial))
	case value.KindString:
		writeCanonicalString(b, v.Str)
	case value.KindBytes:
		writeCanonicalString(b, base64Std(v.Bytes))
	case value.KindTemporal:
		writeCanonicalString(b, v.Temporal.ISO8601)
	case value.KindPoint:
		writeCanonicalPoint(b, v.Point)
	case value.KindList:
		b.WriteByte('[')
		for i, item := range v.List {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonicalValue(b, item)
		}
		b.WriteByte(']')
	case value.KindMap:
		b.WriteString(CanonicalJSON(v.Props))
	default:
		// Nodes, relationships, paths, and unrecognized values are not
		// expected as direct hash-input properties; render their type tag
		// so a hash still changes if one sneaks in, rather than panicking.
		writeCanonicalString(b, v.Kind.String())
	}
}

func writeCanonicalPoint(b *strings.Builder, p value.Point) {
	b.WriteByte('{')
	b.WriteString(`"srid":`)
	b.WriteString(strconv.FormatInt(int64(p.SRID), 10))
	b.WriteString(`,"x":`)
	b.WriteString(strconv.FormatFloat(p.X, 'g', -1, 64))
	b.WriteString(`,"y":`)
	b.WriteString(strconv.FormatFloat(p.Y, 'g', -1, 64))
	if p.HasZ {
		b.WriteString(`,"z":`)
		b.WriteString(strconv.FormatFloat(p.Z, 'g', -1, 64))
	}
	b.WriteByte('}')
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

// writeCanonicalString writes s as a standard JSON-escaped string.
func writeCanonicalString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString("\\u")
				const hexDigits = "0123456789abcdef"
				b.WriteByte(hexDigits[(r>>12)&0xF])
				b.WriteByte(hexDigits[(r>>8)&0xF])
				b.WriteByte(hexDigits[(r>>4)&0xF])
				b.WriteByte(hexDigits[r&0xF])
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}

func base64Std(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Sha256Hex returns the lowercase 64-hex-char SHA-256 of s.
func Sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NodeHash computes spec.md §4.4's node content hash:
// SHA256("node:" + sorted_labels_joined_with_'+' + ":" + canonical_properties_json).
func NodeHash(labels []string, props map[string]value.Value) string {
	sorted := make([]string, len(labels))
	copy(sorted, labels)
	sort.Strings(sorted)
	input := "node:" + strings.Join(sorted, "+") + ":" + CanonicalJSON(props)
	return Sha256Hex(input)
}

// RelationshipHash computes spec.md §4.4's relationship identity hash:
// SHA256("rel:" + type + ":" + start_element_id + ":" + end_element_id + ":" + canonical_properties_json).
// It deliberately uses source-provided endpoint ids, not node content
// hashes, so the hash stays stable across exports that re-hash endpoint
// content.
func RelationshipHash(relType, startElementID, endElementID string, props map[string]value.Value) string {
	input := "rel:" + relType + ":" + startElementID + ":" + endElementID + ":" + CanonicalJSON(props)
	return Sha256Hex(input)
}
