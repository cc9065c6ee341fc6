// Package graphclient defines the external collaborator interfaces the core
// export engine consumes, per spec.md §6: a query executor that accepts a
// parameterized query string and yields records with typed field access.
// The database driver itself is explicitly out of scope (spec.md §1); this
// package only names the boundary the core depends on.
package graphclient

import (
	"context"

	"github.com/n4jet/neo4j-export/value"
)

// Version is the source database's major-version family, used to choose
// between Keyset and SkipLimit pagination (spec.md §4.6).
type Version int

const (
	VersionUnknown Version = iota
	Version4x
	Version5x
	Version6x
)

// Summary is the per-query execution summary returned by Cursor.Consume,
// mirroring the "async Summary" in spec.md §6. Fields beyond counters are
// intentionally omitted; the core does not depend on driver-specific
// summary metadata.
type Summary struct {
	RecordCount int
}

// Record exposes typed field access by key, matching spec.md §6's
// `Record.get(key) -> Value` contract.
type Record interface {
	Get(key string) (value.Value, bool)
}

// Cursor is an async row source for one query execution.
type Cursor interface {
	// Fetch returns the next Record, or ok=false when the cursor is
	// exhausted. A non-nil error is always fatal for this cursor.
	Fetch(ctx context.Context) (rec Record, ok bool, err error)
	Consume(ctx context.Context) (Summary, error)
}

// Runner is the query executor the core consumes. Params use Go's
// map[string]any since the core never constructs complex parameter
// structures beyond scalars and the keyset cursor value.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (Cursor, error)
	ProbeVersion(ctx context.Context) (Version, error)
}

// MapRecord is a convenience Record implementation over a plain map, used
// by adapters translating driver-native rows into the core's Record
// interface.
type MapRecord map[string]value.Value

func (m MapRecord) Get(key string) (value.Value, bool) {
	v, ok := m[key]
	return v, ok
}
