package export_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/n4jet/neo4j-export/config"
	"github.com/n4jet/neo4j-export/export"
	"github.com/n4jet/neo4j-export/graphclient"
	"github.com/n4jet/neo4j-export/graphtest"
	"github.com/n4jet/neo4j-export/metadata"
	"github.com/n4jet/neo4j-export/n4jeterr"
	"github.com/n4jet/neo4j-export/paginate"
	"github.com/n4jet/neo4j-export/value"
)

// mockBuilder matches graphtest.MockRunner's routing convention: the query
// text must contain "FROM nodes" or "FROM rels".
func mockBuilder(table string) paginate.QueryBuilder {
	return func(strategy paginate.Strategy, batchSize int, lastID *paginate.KeysetID, skip uint64) (string, map[string]any) {
		if strategy == paginate.StrategyKeyset {
			after := ""
			if lastID != nil {
				after = lastID.String()
			}
			return "SELECT * FROM " + table + " WHERE id > $after_id ORDER BY id LIMIT $limit",
				map[string]any{"after_id": after, "limit": batchSize}
		}
		return "SELECT * FROM " + table + " SKIP $skip LIMIT $limit",
			map[string]any{"skip": int(skip), "limit": batchSize}
	}
}

func newOrchestrator(runner *graphtest.MockRunner, cfg config.Config) *export.Orchestrator {
	return &export.Orchestrator{
		Config:       cfg,
		Runner:       runner,
		DatabaseName: "neo4j",
		NodeBuilder:  mockBuilder("nodes"),
		RelBuilder:   mockBuilder("rels"),
	}
}

func TestOrchestrator_EmptyDatabaseProducesSingleMetadataLine(t *testing.T) {
	runner := graphtest.NewMockRunner()
	cfg := config.Defaults()
	cfg.BatchSize = 100
	o := newOrchestrator(runner, cfg)

	out := graphtest.NewMemFile()
	result, err := o.Run(context.Background(), out)
	require.NoError(t, err)
	require.False(t, result.Cancelled)
	require.Equal(t, uint64(0), result.NodesProcessed)
	require.Equal(t, uint64(0), result.RelsProcessed)

	content := out.Bytes()
	trimmed := strings.TrimRight(string(content), " \n")
	require.Equal(t, 1, strings.Count(string(content), "\n"),
		"an empty export must produce exactly one physical line")

	var decoded metadata.Metadata
	require.NoError(t, json.Unmarshal([]byte(trimmed), &decoded))
	require.Equal(t, int64(0), decoded.DatabaseStatistics.NodeCount)
	require.Equal(t, int64(0), decoded.DatabaseStatistics.RelCount)
	require.False(t, decoded.ErrorSummary.HasErrors)
}

func TestOrchestrator_MissingEndpointDegradesToWarning(t *testing.T) {
	runner := graphtest.NewMockRunner()
	runner.AddNode("n1", []string{"Person"}, map[string]value.Value{"name": value.StringOf("Ann")})
	// n2 is deliberately never added as a node: the relationship below
	// references an endpoint the node pass never saw (spec.md §8 S3).
	runner.AddRelationship("r1", "KNOWS", "n1", "n2", nil)

	cfg := config.Defaults()
	cfg.BatchSize = 100
	o := newOrchestrator(runner, cfg)

	out := graphtest.NewMemFile()
	result, err := o.Run(context.Background(), out)
	require.NoError(t, err)
	require.Equal(t, uint64(1), result.NodesProcessed)
	require.Equal(t, uint64(1), result.RelsProcessed)
	require.False(t, result.Cancelled)

	require.Equal(t, uint64(0), result.Metadata.ErrorSummary.ErrorCount)
	require.Equal(t, uint64(1), result.Metadata.ErrorSummary.WarningCount, "one missing-endpoint warning")
	require.False(t, result.Metadata.ErrorSummary.HasErrors)

	lines := strings.Split(strings.TrimRight(string(out.Bytes()), "\n"), "\n")
	require.Len(t, lines, 4, "metadata + 1 node + 1 relationship + 1 warning")

	var relRecord map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimRight(lines[2], " ")), &relRecord))
	require.Equal(t, "", relRecord["end_node_content_hash"], "unresolved endpoint degrades to an empty hash, not a failure")

	var warning map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &warning))
	require.Equal(t, "warning", warning["type"])
	require.Contains(t, warning["message"], "Stable ID not found for end node")
}

func TestOrchestrator_PaginationCannotAdvanceAbortsWithExitCode5(t *testing.T) {
	runner := graphtest.NewMockRunner()
	for i := 0; i < 10; i++ {
		runner.Nodes = append(runner.Nodes, graphclient.MapRecord{}) // no element_id: unextractable
	}

	cfg := config.Defaults()
	cfg.BatchSize = 10
	o := newOrchestrator(runner, cfg)

	out := graphtest.NewMemFile()
	_, err := o.Run(context.Background(), out)
	require.Error(t, err)
	require.Equal(t, 5, n4jeterr.ExitCode(err))
}

func TestOrchestrator_ExportTimestampFlowsIntoMetadata(t *testing.T) {
	runner := graphtest.NewMockRunner()
	runner.AddNode("n1", []string{"Thing"}, nil)

	cfg := config.Defaults()
	cfg.BatchSize = 100
	o := newOrchestrator(runner, cfg)

	out := graphtest.NewMemFile()
	result, err := o.Run(context.Background(), out)
	require.NoError(t, err)

	parsed, err := time.Parse(time.RFC3339, result.Metadata.ExportMetadata.ExportTimestampUTC)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), parsed, time.Minute)
}
