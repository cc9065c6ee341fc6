// Package metadata builds and patches the line-1 metadata object described
// in spec.md §4.9: a preliminary object written before any payload line
// (reserving a fixed byte width for later patching) and a final,
// size-exact rewrite once both passes have completed.
package metadata

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/n4jet/neo4j-export/n4jeterr"
	"github.com/n4jet/neo4j-export/n4jetpb"
	"github.com/n4jet/neo4j-export/paginate"
)

// DefaultReservedWidth is the line-1 byte budget reserved for the
// preliminary metadata object, before final counts are known. It must be
// generous enough to hold the final object (including database_schema's
// label/relType arrays) or PatchFinal fails.
const DefaultReservedWidth = 65536

// FormatVersion is this module's metadata schema version.
const FormatVersion = "1.0"

// ExportMetaBlock is spec.md §4.9's "export_metadata" object.
type ExportMetaBlock struct {
	ExportID           string `json:"export_id"`
	ExportTimestampUTC string `json:"export_timestamp_utc"`
	ExportMode         string `json:"export_mode"`
}

// Producer is spec.md §4.9's "producer" object.
type Producer struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Checksum       string `json:"checksum,omitempty"`
	RuntimeVersion string `json:"runtime_version,omitempty"`
}

// DatabaseRef names the source database within SourceSystem.
type DatabaseRef struct {
	Name string `json:"name"`
}

// SourceSystem is spec.md §4.9's "source_system" object.
type SourceSystem struct {
	Type     string      `json:"type"`
	Version  string      `json:"version,omitempty"`
	Edition  string      `json:"edition,omitempty"`
	Database DatabaseRef `json:"database"`
}

// DatabaseStatistics is spec.md §4.9's "database_statistics" object.
type DatabaseStatistics struct {
	NodeCount    int64 `json:"nodeCount"`
	RelCount     int64 `json:"relCount"`
	LabelCount   int   `json:"labelCount"`
	RelTypeCount int   `json:"relTypeCount"`
}

// DatabaseSchema is spec.md §4.9's optional "database_schema" object,
// omitted entirely when skip_schema_collection is set.
type DatabaseSchema struct {
	Labels             []string `json:"labels"`
	RelationshipTypes  []string `json:"relationshipTypes"`
}

// ErrorSummary is spec.md §4.9's "error_summary" object.
type ErrorSummary struct {
	ErrorCount   uint64 `json:"error_count"`
	WarningCount uint64 `json:"warning_count"`
	HasErrors    bool   `json:"has_errors"`
}

// FileStatistic is one entry of export_manifest.file_statistics: per-label
// record counts, bytes, and timing.
type FileStatistic struct {
	Label            string  `json:"label"`
	RecordCount      int64   `json:"record_count"`
	BytesWritten     int64   `json:"bytes_written"`
	ExportDurationMs float64 `json:"export_duration_ms"`
}

// ExportManifest is spec.md §4.9's "export_manifest" object.
type ExportManifest struct {
	TotalExportDurationSeconds float64         `json:"total_export_duration_seconds"`
	FileStatistics             []FileStatistic `json:"file_statistics"`
	Cancelled                  bool            `json:"cancelled,omitempty"`
}

// Metadata is the full line-1 object, field-for-field from spec.md §4.9.
type Metadata struct {
	FormatVersion          string                      `json:"format_version"`
	ExportMetadata         ExportMetaBlock             `json:"export_metadata"`
	Producer               Producer                    `json:"producer"`
	SourceSystem           SourceSystem                `json:"source_system"`
	DatabaseStatistics     DatabaseStatistics          `json:"database_statistics"`
	DatabaseSchema         *DatabaseSchema             `json:"database_schema,omitempty"`
	ErrorSummary           ErrorSummary                `json:"error_summary"`
	SupportedRecordTypes   []string                    `json:"supported_record_types"`
	Environment            map[string]string           `json:"environment"`
	Security               map[string]any              `json:"security"`
	Compatibility          map[string]any              `json:"compatibility"`
	Compression            map[string]any              `json:"compression"`
	ExportManifest         ExportManifest              `json:"export_manifest"`
	PaginationPerformance  map[string]paginate.Metrics `json:"pagination_performance,omitempty"`
}

// Writer renders and patches the line-1 metadata object, optionally
// validating it against the embedded schema (n4jetpb) when Validate is
// true, using a compile-once jsonschema validator adapted to a two-stage
// write instead of a one-shot payload validation.
type Writer struct {
	ReservedWidth int
	Validate      bool
	Logger        zerolog.Logger
}

// NewWriter creates a Writer with DefaultReservedWidth.
func NewWriter(validate bool, logger zerolog.Logger) *Writer {
	return &Writer{ReservedWidth: DefaultReservedWidth, Validate: validate, Logger: logger}
}

func (w *Writer) reservedWidth() int {
	if w.ReservedWidth <= 0 {
		return DefaultReservedWidth
	}
	return w.ReservedWidth
}

// render marshals md compactly and pads it with spaces so that the line,
// including its trailing newline, is exactly the reserved width; the padding
// is insignificant JSON
// whitespace, so the line still parses as the metadata object verbatim
// (spec.md §8 Universal Property 2).
func (w *Writer) render(md Metadata) ([]byte, error) {
	body, err := json.Marshal(md)
	if err != nil {
		return nil, n4jeterr.Wrap(n4jeterr.KindSerialization, "marshaling metadata object", err)
	}
	width := w.reservedWidth()
	if len(body)+1 > width {
		return nil, n4jeterr.New(n4jeterr.KindFileSystem,
			fmt.Sprintf("metadata object (%d bytes) exceeds reserved line width (%d bytes); increase ReservedWidth", len(body), width))
	}
	if w.Validate {
		var doc any
		if err := json.Unmarshal(body, &doc); err == nil {
			if verr := n4jetpb.ValidateMetadata(doc); verr != nil {
				w.Logger.Warn().Err(verr).Msg("metadata object failed embedded schema validation; continuing")
			}
		}
	}
	line := make([]byte, 0, width)
	line = append(line, body...)
	for len(line) < width-1 {
		line = append(line, ' ')
	}
	line = append(line, '\n')
	return line, nil
}

// WritePreliminary writes the line-1 metadata object at the current file
// position (expected to be offset 0, start of the output file) and returns
// the total line width in bytes (including the trailing newline), which
// the caller must pass to PatchFinal unchanged. w need only satisfy
// io.Writer since this is always the first write to a fresh output stream.
func (w *Writer) WritePreliminary(dst io.Writer, md Metadata) (int, error) {
	line, err := w.render(md)
	if err != nil {
		return 0, err
	}
	if _, err := dst.Write(line); err != nil {
		return 0, n4jeterr.Wrap(n4jeterr.KindFileSystem, "writing preliminary metadata line", err)
	}
	return len(line), nil
}

// PatchFinal rewrites the line-1 metadata object in place with final
// counts, per spec.md §4.7. width must be the value WritePreliminary
// returned; the rendered line is required to be exactly that length so the
// patch never shifts any subsequent byte offset in the file. dst need only
// satisfy io.WriteSeeker — the orchestrator's output boundary is an
// io.WriteSeeker, not a concrete *os.File, so tests can patch an in-memory
// buffer.
func (w *Writer) PatchFinal(dst io.WriteSeeker, md Metadata, width int) error {
	line, err := w.render(md)
	if err != nil {
		return err
	}
	if len(line) != width {
		return n4jeterr.New(n4jeterr.KindFileSystem,
			fmt.Sprintf("final metadata line (%d bytes) does not match reserved width (%d bytes)", len(line), width))
	}
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return n4jeterr.Wrap(n4jeterr.KindFileSystem, "seeking to patch final metadata line", err)
	}
	if _, err := dst.Write(line); err != nil {
		return n4jeterr.Wrap(n4jeterr.KindFileSystem, "patching final metadata line", err)
	}
	return nil
}
