package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n4jet/neo4j-export/config"
)

func TestDefaults_MatchSpec(t *testing.T) {
	d := config.Defaults()
	require.Equal(t, 10000, d.BatchSize)
	require.Equal(t, 16, d.JSONBufferSizeKB)
	require.Equal(t, 1024, d.MaxMemoryMB)
	require.Equal(t, 10, d.MinDiskGB)
	require.True(t, d.EnableHashedIDs)
	require.True(t, d.ValidateJSON)
	require.Equal(t, 100000, d.MaxPathLength)
	require.Equal(t, 1000, d.PathFullModeLimit)
	require.Equal(t, 10000, d.PathCompactModeLimit)
	require.Equal(t, 10, d.MaxNestedDepth)
	require.Equal(t, 100, d.MaxLabelsPerNode)
	require.Equal(t, 10000, d.MaxCollectionItems)
}

func TestFromEnviron_OverridesDefaults(t *testing.T) {
	t.Setenv("N4JET_BATCH_SIZE", "500")
	t.Setenv("N4JET_ENABLE_HASHED_IDS", "false")
	t.Setenv("N4JET_NEO4J_URI", "bolt://localhost:7687")

	cfg, err := config.FromEnviron(config.Defaults())
	require.NoError(t, err)
	require.Equal(t, 500, cfg.BatchSize)
	require.False(t, cfg.EnableHashedIDs)
	require.Equal(t, "bolt://localhost:7687", cfg.Neo4jURI)
}

func TestFromEnviron_InvalidIntAggregates(t *testing.T) {
	t.Setenv("N4JET_BATCH_SIZE", "not-a-number")
	_, err := config.FromEnviron(config.Defaults())
	require.Error(t, err)
}

func TestValidate_CatchesInvertedDepthLimits(t *testing.T) {
	cfg := config.Defaults()
	cfg.NestedShallowModeDepth = 9
	cfg.NestedReferenceModeDepth = 8
	require.Error(t, cfg.Validate())
}

func TestValidate_CatchesNonPositiveBatchSize(t *testing.T) {
	cfg := config.Defaults()
	cfg.BatchSize = 0
	require.Error(t, cfg.Validate())
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	require.NoError(t, config.Defaults().Validate())
}

func TestFromYAML_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 777\noutput_directory: /tmp/exports\n"), 0o600))

	cfg, err := config.FromYAML(path)
	require.NoError(t, err)
	require.Equal(t, 777, cfg.BatchSize)
	require.Equal(t, "/tmp/exports", cfg.OutputDirectory)
	require.Equal(t, 16, cfg.JSONBufferSizeKB, "unset fields keep their default")
}

func TestFromEnviron_OverlaysOnTopOfYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 777\n"), 0o600))

	base, err := config.FromYAML(path)
	require.NoError(t, err)

	t.Setenv("N4JET_BATCH_SIZE", "42")
	cfg, err := config.FromEnviron(base)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.BatchSize, "environment wins over the YAML baseline")
}
