// Package serialize implements spec.md §4.3: a single dispatch from Value
// to JSON, applying string/binary/collection size limits, the embedded
// graph-element depth policy, the path compaction policy, and mid-record
// failure isolation. It is the largest single component in the export
// pipeline (spec.md §2 puts it at ~20% of source).
package serialize

import "github.com/n4jet/neo4j-export/config"

// Limits bundles every size/depth/label cap the serializer consults, built
// once from config.Config so the hot path never re-reads a Config field by
// name.
type Limits struct {
	StringLimit     int
	BinaryLimit     int
	CollectionLimit int

	MaxNestedDepth           int
	NestedShallowModeDepth   int
	NestedReferenceModeDepth int

	MaxLabelsPerNode         int
	MaxLabelsInReferenceMode int
	MaxLabelsInPathCompact   int

	MaxPathLength        int
	PathFullModeLimit    int
	PathCompactModeLimit int

	EnableHashedIDs bool
}

// defaultStringLimit, defaultBinaryLimit are the spec.md §4.3 defaults;
// unlike the other limits these are not currently exposed as config.Config
// fields (spec.md §4.3 only names them as component constants), so
// LimitsFromConfig fixes them at this default rather than threading two
// more env vars through config.Config.
const (
	defaultStringLimit = 10_000_000
	defaultBinaryLimit = 50_000_000
)

// LimitsFromConfig builds Limits from a loaded Config.
func LimitsFromConfig(c config.Config) Limits {
	return Limits{
		StringLimit:              defaultStringLimit,
		BinaryLimit:               defaultBinaryLimit,
		CollectionLimit:           c.MaxCollectionItems,
		MaxNestedDepth:            c.MaxNestedDepth,
		NestedShallowModeDepth:    c.NestedShallowModeDepth,
		NestedReferenceModeDepth:  c.NestedReferenceModeDepth,
		MaxLabelsPerNode:          c.MaxLabelsPerNode,
		MaxLabelsInReferenceMode:  c.MaxLabelsInReferenceMode,
		MaxLabelsInPathCompact:    c.MaxLabelsInPathCompact,
		MaxPathLength:             c.MaxPathLength,
		PathFullModeLimit:         c.PathFullModeLimit,
		PathCompactModeLimit:      c.PathCompactModeLimit,
		EnableHashedIDs:           c.EnableHashedIDs,
	}
}
