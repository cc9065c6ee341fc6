package paginate

import "fmt"

// KeysetShape tags which of the two supported id shapes a KeysetID carries.
// Comparing mixed shapes is forbidden by spec.md §4.6 and signals a fatal
// pagination error.
type KeysetShape int

const (
	ShapeNumeric KeysetShape = iota
	ShapeElementish
)

// KeysetID is the small tagged union spec.md §4.6 requires: Numeric(i64)
// for source 4.x, Elementish(string) for source 5.x+.
type KeysetID struct {
	Shape    KeysetShape
	Numeric  int64
	Elemish  string
}

// NumericID builds a 4.x-style keyset id.
func NumericID(n int64) KeysetID { return KeysetID{Shape: ShapeNumeric, Numeric: n} }

// ElementishID builds a 5.x+-style keyset id.
func ElementishID(s string) KeysetID { return KeysetID{Shape: ShapeElementish, Elemish: s} }

// Compare returns -1, 0, 1 comparing a to b. It returns an error if the two
// ids have different shapes, per spec.md §4.6's "forbidden" comparison
// rule.
func (a KeysetID) Compare(b KeysetID) (int, error) {
	if a.Shape != b.Shape {
		return 0, fmt.Errorf("paginate: cannot compare keyset ids of different shapes (%v vs %v)", a.Shape, b.Shape)
	}
	switch a.Shape {
	case ShapeNumeric:
		switch {
		case a.Numeric < b.Numeric:
			return -1, nil
		case a.Numeric > b.Numeric:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		switch {
		case a.Elemish < b.Elemish:
			return -1, nil
		case a.Elemish > b.Elemish:
			return 1, nil
		default:
			return 0, nil
		}
	}
}

// String renders the id for log messages and error text.
func (a KeysetID) String() string {
	if a.Shape == ShapeNumeric {
		return fmt.Sprintf("%d", a.Numeric)
	}
	return a.Elemish
}
