package export

import "github.com/n4jet/neo4j-export/paginate"

// defaultNodeBuilder and defaultRelBuilder are the Cypher query builders an
// Orchestrator uses when the caller does not supply its own, per spec.md
// §4.6's builder(strategy, batch_size, last_id, skip) -> (query, params)
// contract. elementId() is stable across a single export within one source
// version family and orders consistently with ORDER BY, which is all the
// keyset strategy requires.
func defaultNodeBuilder() paginate.QueryBuilder {
	return func(strategy paginate.Strategy, batchSize int, lastID *paginate.KeysetID, skip uint64) (string, map[string]any) {
		if strategy == paginate.StrategyKeyset {
			after := ""
			if lastID != nil {
				after = lastID.String()
			}
			return "MATCH (n) WHERE elementId(n) > $after_id " +
					"RETURN elementId(n) AS element_id, labels(n) AS labels, properties(n) AS properties " +
					"ORDER BY elementId(n) LIMIT $limit",
				map[string]any{"after_id": after, "limit": batchSize}
		}
		return "MATCH (n) RETURN elementId(n) AS element_id, labels(n) AS labels, properties(n) AS properties " +
				"ORDER BY elementId(n) SKIP $skip LIMIT $limit",
			map[string]any{"skip": int(skip), "limit": batchSize}
	}
}

func defaultRelBuilder() paginate.QueryBuilder {
	return func(strategy paginate.Strategy, batchSize int, lastID *paginate.KeysetID, skip uint64) (string, map[string]any) {
		const fields = "elementId(r) AS element_id, type(r) AS type, " +
			"elementId(startNode(r)) AS start_element_id, elementId(endNode(r)) AS end_element_id, " +
			"properties(r) AS properties"
		if strategy == paginate.StrategyKeyset {
			after := ""
			if lastID != nil {
				after = lastID.String()
			}
			return "MATCH ()-[r]->() WHERE elementId(r) > $after_id RETURN " + fields +
					" ORDER BY elementId(r) LIMIT $limit",
				map[string]any{"after_id": after, "limit": batchSize}
		}
		return "MATCH ()-[r]->() RETURN " + fields + " ORDER BY elementId(r) SKIP $skip LIMIT $limit",
			map[string]any{"skip": int(skip), "limit": batchSize}
	}
}

const (
	defaultNodeCountQuery = "MATCH (n) RETURN count(n) AS total"
	defaultRelCountQuery  = "MATCH ()-[r]->() RETURN count(r) AS total"
)
