package paginate

import "github.com/n4jet/neo4j-export/graphclient"

// Strategy identifies which pagination algorithm a batch used, per
// spec.md §4.6.
type Strategy string

const (
	StrategyKeyset    Strategy = "keyset"
	StrategySkipLimit Strategy = "skip_limit"
)

// QueryBuilder constructs the query and parameters for one batch. state
// carries the current cursor: for StrategyKeyset, lastID is the maximum id
// observed in the previous batch (nil on the first batch); for
// StrategySkipLimit, skip is the running offset.
type QueryBuilder func(strategy Strategy, batchSize int, lastID *KeysetID, skip uint64) (query string, params map[string]any)

// KeysetIDExtractor pulls a KeysetID out of one fetched record, so the
// driver can advance last_id without knowing the record's field layout.
// Returning ok=false signals an unprocessable row (spec.md §4.6's
// "id extractions fail" case).
type KeysetIDExtractor func(rec graphclient.Record) (id KeysetID, ok bool)
