package export_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/n4jet/neo4j-export/export"
)

func TestBuildFilename_SanitizesDBNameAndTruncatesExportID(t *testing.T) {
	at := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	name := export.BuildFilename("My-Test.DB!!", at, 3, 5, "abcdef0123456789")
	require.Equal(t, "MyTestDB_20260730T120000Z_3n_5r_abcdef01.jsonl", name)
}

func TestBuildFilename_FallsBackToExportWhenNameFullySanitizes(t *testing.T) {
	at := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	name := export.BuildFilename("!!!", at, 0, 0, "short")
	require.Equal(t, "export_20260730T120000Z_0n_0r_short.jsonl", name)
}

func TestCreateFinalizeDiscardOutput_Lifecycle(t *testing.T) {
	dir := t.TempDir()

	tmp, err := export.CreateTempFile(dir)
	require.NoError(t, err)
	tmpPath := tmp.Name()
	require.FileExists(t, tmpPath)

	_, err = tmp.WriteString("{}\n")
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	final, err := export.FinalizeOutput(tmpPath, dir, "neo4j_20260730T120000Z_0n_0r_abcdef01.jsonl")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "neo4j_20260730T120000Z_0n_0r_abcdef01.jsonl"), final)
	require.FileExists(t, final)
	require.NoFileExists(t, tmpPath)
}

func TestDiscardOutput_RemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	tmp, err := export.CreateTempFile(dir)
	require.NoError(t, err)
	tmpPath := tmp.Name()
	require.NoError(t, tmp.Close())

	export.DiscardOutput(tmpPath)
	_, statErr := os.Stat(tmpPath)
	require.True(t, os.IsNotExist(statErr))
}
