package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/n4jet/neo4j-export/n4jeterr"
)

// sanitizeDBName implements spec.md §4.9's filename sanitization: keep only
// alnum/underscore, cap at 20 chars, fall back to "export" when nothing
// survives. DESIGN.md records the Open Question this resolves: collision
// behavior for concurrently exported databases whose names sanitize to the
// same fallback is left to the caller (output_directory isolation, or a
// caller-supplied distinguishing export_id), since spec.md §9 explicitly
// declines to define it.
func sanitizeDBName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
		if b.Len() >= 20 {
			break
		}
	}
	if b.Len() == 0 {
		return "export"
	}
	return b.String()
}

// BuildFilename renders spec.md §4.9's naming scheme:
// <db>_<yyyyMMddTHHmmssZ>_<N>n_<R>r_<first8_of_export_id>.jsonl
func BuildFilename(dbName string, at time.Time, nodeCount, relCount int64, exportID string) string {
	ts := at.UTC().Format("20060102T150405Z")
	id8 := exportID
	if len(id8) > 8 {
		id8 = id8[:8]
	}
	return fmt.Sprintf("%s_%s_%dn_%dr_%s.jsonl", sanitizeDBName(dbName), ts, nodeCount, relCount, id8)
}

// CreateTempFile opens a temp file in dir for the export's output,
// following spec.md §4.7's "temporary file... atomically renamed on
// success". The caller (cmd/n4jet-export) owns the returned *os.File and
// passes it to Orchestrator.Run as its io.WriteSeeker.
func CreateTempFile(dir string) (*os.File, error) {
	f, err := os.CreateTemp(dir, "n4jet-export-*.jsonl.tmp")
	if err != nil {
		return nil, n4jeterr.Wrap(n4jeterr.KindFileSystem, "creating output temp file in "+dir, err)
	}
	return f, nil
}

// FinalizeOutput renames tmpPath to its final name in dir, per spec.md
// §4.7's atomic-rename-on-success contract.
func FinalizeOutput(tmpPath, dir, filename string) (string, error) {
	final := filepath.Join(dir, filename)
	if err := os.Rename(tmpPath, final); err != nil {
		return "", n4jeterr.Wrap(n4jeterr.KindFileSystem, "renaming "+tmpPath+" to "+final, err)
	}
	return final, nil
}

// DiscardOutput deletes the temp file, used on cancellation or any
// unrecoverable error per spec.md §4.7/§5.
func DiscardOutput(tmpPath string) {
	_ = os.Remove(tmpPath)
}
