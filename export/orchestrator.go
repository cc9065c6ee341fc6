// Package export implements spec.md §4.7's two-pass orchestrator: pass 1
// streams every node (computing content hashes and populating the endpoint
// table), pass 2 streams every relationship (resolving endpoint hashes and
// computing the identity hash), and the line-1 metadata object is written
// preliminarily before pass 1 and patched with final counts after pass 2.
package export

import (
	"context"
	"encoding/json"
	"io"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/n4jet/neo4j-export/config"
	"github.com/n4jet/neo4j-export/erroracc"
	"github.com/n4jet/neo4j-export/graphclient"
	"github.com/n4jet/neo4j-export/hashid"
	"github.com/n4jet/neo4j-export/jsonstream"
	"github.com/n4jet/neo4j-export/metadata"
	"github.com/n4jet/neo4j-export/n4jeterr"
	"github.com/n4jet/neo4j-export/paginate"
	"github.com/n4jet/neo4j-export/serialize"
)

// Orchestrator ties the pagination driver, the content-hash endpoint table,
// the serializer, the error accumulator, and the metadata writer into the
// full export pipeline. It never opens or renames any file itself: Run
// writes through an io.WriteSeeker the caller owns, so the CLI layer is the
// only place a real *os.File (and its temp-file-then-rename lifecycle,
// output.go) is involved.
type Orchestrator struct {
	Config       config.Config
	Runner       graphclient.Runner
	DatabaseName string

	// Endpoints is the node-id -> content-hash table populated in pass 1
	// and consulted in pass 2. Defaults to an in-memory hashid.MemStore
	// when nil; set to a hashid.FileEndpointStore for graphs too large to
	// hash in RAM (spec.md §9).
	Endpoints hashid.EndpointStore

	// Recorder mirrors pagination batch timings into an external sink
	// (e.g. telemetry.Recorder). Optional.
	Recorder paginate.Recorder

	Logger zerolog.Logger

	// NodeBuilder/RelBuilder override the default Cypher query builders,
	// primarily so tests can substitute graphtest.MockRunner's routing
	// convention.
	NodeBuilder paginate.QueryBuilder
	RelBuilder  paginate.QueryBuilder

	NodeCountQuery string
	RelCountQuery  string

	ProducerVersion string // defaults to "dev"

	// now is injectable so tests can assert on export_timestamp_utc and
	// the filename-embedded timestamp deterministically.
	now func() time.Time
}

// Result summarizes one completed or cancelled run.
type Result struct {
	Metadata       metadata.Metadata
	NodesProcessed uint64
	RelsProcessed  uint64
	Cancelled      bool
}

type nodePassState struct {
	count        int64
	bytesWritten int64
	labelsSeen   map[string]struct{}
	labelStats   *LabelStatsTable
}

type relPassState struct {
	count            int64
	bytesWritten     int64
	relTypesSeen     map[string]struct{}
	typeStats        *LabelStatsTable
	missingEndpoints int64
}

// Run executes spec.md §4.7's full pipeline against out, an io.WriteSeeker
// positioned at offset 0. A nil error with Result.Cancelled true means
// cooperative cancellation completed cleanly (spec.md §4.6): the caller
// should discard, not rename, the underlying file.
func (o *Orchestrator) Run(ctx context.Context, out io.WriteSeeker) (Result, error) {
	nowFn := o.now
	if nowFn == nil {
		nowFn = time.Now
	}
	startTime := nowFn()
	exportID := uuid.New().String()

	limits := serialize.LimitsFromConfig(o.Config)
	errAcc := erroracc.New(nowFn)
	serializer := serialize.New(limits, errAcc)
	metaWriter := metadata.NewWriter(o.Config.ValidateJSON, o.Logger)

	endpoints := o.Endpoints
	if endpoints == nil {
		endpoints = hashid.NewMemStore(0)
	}
	defer endpoints.Close()

	version, err := o.Runner.ProbeVersion(ctx)
	if err != nil {
		return Result{}, n4jeterr.Wrap(n4jeterr.KindConnection, "probing source database version", err)
	}

	prelim := o.baseMetadata(exportID, startTime, version)
	width, err := metaWriter.WritePreliminary(out, prelim)
	if err != nil {
		return Result{}, err
	}

	w := jsonstream.New(o.Config.JSONBufferSizeKB*1024, 0)

	nodeBuilder := o.NodeBuilder
	if nodeBuilder == nil {
		nodeBuilder = defaultNodeBuilder()
	}
	nodeCountQuery := o.NodeCountQuery
	if nodeCountQuery == "" {
		nodeCountQuery = defaultNodeCountQuery
	}

	nodeTracker := paginate.NewPerformanceTracker("Nodes", o.Recorder)
	nodeDriver := &paginate.Driver[*nodePassState]{
		EntityName:      "Nodes",
		Runner:          o.Runner,
		TotalCountQuery: nodeCountQuery,
		Builder:         nodeBuilder,
		ExtractID:       nodeKeysetID,
		BatchSize:       o.Config.BatchSize,
		QueryTimeout:    o.Config.QueryTimeout(),
		MaxRetries:      o.Config.MaxRetries,
		RetryDelay:      o.Config.RetryDelay(),
		MaxRetryDelay:   o.Config.MaxRetryDelay(),
		Tracker:         nodeTracker,
		Logger:          o.Logger,
		Handler:         o.nodeHandler(w, serializer, endpoints, out, errAcc, nowFn),
	}

	nodeState := &nodePassState{labelsSeen: map[string]struct{}{}, labelStats: NewLabelStatsTable()}
	nodeResult, err := nodeDriver.Run(ctx, version, nodeState)
	if err != nil {
		return Result{}, err
	}
	if nodeResult.Cancelled {
		return o.finalizeCancelled(metaWriter, out, width, exportID, startTime, version,
			nodeResult, paginate.Result[*relPassState]{}, errAcc, nil, nodeResult.State, nil,
			nodeResult.State.labelStats.FileStatistics())
	}

	o.Logger.Info().Str("entity", "Nodes").Int64("count", nodeResult.State.count).
		Int64("bytes_written", nodeResult.State.bytesWritten).Str("strategy", string(nodeResult.Strategy)).
		Msg("pass 1 complete")

	// Between-pass flush (spec.md §4.5): drains pass 1's bounded
	// dedup table so pass 2 starts with a fresh one, but the records
	// themselves are buffered, not written yet — the file's ordering
	// guarantee (spec.md §4.7) requires every relationship record to
	// precede any error/warning record.
	pendingRecords := errAcc.Flush(1)

	relBuilder := o.RelBuilder
	if relBuilder == nil {
		relBuilder = defaultRelBuilder()
	}
	relCountQuery := o.RelCountQuery
	if relCountQuery == "" {
		relCountQuery = defaultRelCountQuery
	}

	relTracker := paginate.NewPerformanceTracker("Relationships", o.Recorder)
	relDriver := &paginate.Driver[*relPassState]{
		EntityName:      "Relationships",
		Runner:          o.Runner,
		TotalCountQuery: relCountQuery,
		Builder:         relBuilder,
		ExtractID:       relKeysetID,
		BatchSize:       o.Config.BatchSize,
		QueryTimeout:    o.Config.QueryTimeout(),
		MaxRetries:      o.Config.MaxRetries,
		RetryDelay:      o.Config.RetryDelay(),
		MaxRetryDelay:   o.Config.MaxRetryDelay(),
		Tracker:         relTracker,
		Logger:          o.Logger,
		Handler:         o.relHandler(w, serializer, endpoints, out, errAcc, nowFn),
	}

	relState := &relPassState{relTypesSeen: map[string]struct{}{}, typeStats: NewLabelStatsTable()}
	relResult, err := relDriver.Run(ctx, version, relState)
	if err != nil {
		return Result{}, err
	}
	o.Logger.Info().Str("entity", "Relationships").Int64("count", relResult.State.count).
		Int64("bytes_written", relResult.State.bytesWritten).Int64("missing_endpoints", relResult.State.missingEndpoints).
		Str("strategy", string(relResult.Strategy)).Msg("pass 2 complete")

	fileStats := append(nodeResult.State.labelStats.FileStatistics(), relResult.State.typeStats.FileStatistics()...)

	if relResult.Cancelled {
		return o.finalizeCancelled(metaWriter, out, width, exportID, startTime, version,
			nodeResult, relResult, errAcc, pendingRecords, nodeResult.State, relResult.State, fileStats)
	}

	pendingRecords = append(pendingRecords, errAcc.Flush(2)...)

	var errorCount, warningCount uint64
	for _, rec := range pendingRecords {
		if rec.Type == erroracc.LevelError {
			errorCount += rec.Count
		} else {
			warningCount += rec.Count
		}
		if err := writeErrorRecord(out, rec); err != nil {
			return Result{}, err
		}
	}

	final := o.baseMetadata(exportID, startTime, version)
	final.DatabaseStatistics = metadata.DatabaseStatistics{
		NodeCount:    int64(nodeResult.Processed),
		RelCount:     int64(relResult.Processed),
		LabelCount:   len(nodeResult.State.labelsSeen),
		RelTypeCount: len(relResult.State.relTypesSeen),
	}
	if !o.Config.SkipSchemaCollection {
		final.DatabaseSchema = &metadata.DatabaseSchema{
			Labels:            sortedSetKeys(nodeResult.State.labelsSeen),
			RelationshipTypes: sortedSetKeys(relResult.State.relTypesSeen),
		}
	}
	final.ErrorSummary = metadata.ErrorSummary{
		ErrorCount:   errorCount,
		WarningCount: warningCount,
		HasErrors:    errorCount > 0,
	}
	final.ExportManifest = metadata.ExportManifest{
		TotalExportDurationSeconds: nowFn().Sub(startTime).Seconds(),
		FileStatistics:             fileStats,
	}
	final.PaginationPerformance = map[string]paginate.Metrics{
		"Nodes":         nodeTracker.GetMetrics(nodeResult.Strategy),
		"Relationships": relTracker.GetMetrics(relResult.Strategy),
	}

	if err := metaWriter.PatchFinal(out, final, width); err != nil {
		return Result{}, err
	}

	return Result{Metadata: final, NodesProcessed: nodeResult.Processed, RelsProcessed: relResult.Processed}, nil
}

// finalizeCancelled implements spec.md §4.6's cancellation contract: flush
// whatever is pending (carried holds records already flushed at the pass
// boundary but not yet written), patch metadata with
// export_manifest.cancelled=true using partial counts, and return
// Result.Cancelled=true with a nil error — the caller (not the orchestrator)
// decides to discard the file instead of renaming it.
func (o *Orchestrator) finalizeCancelled(
	metaWriter *metadata.Writer, out io.WriteSeeker, width int,
	exportID string, startTime time.Time, version graphclient.Version,
	nodeResult paginate.Result[*nodePassState], relResult paginate.Result[*relPassState],
	errAcc *erroracc.Accumulator, carried []erroracc.Record, nodeState *nodePassState, relState *relPassState,
	fileStats []metadata.FileStatistic,
) (Result, error) {
	pending := append(carried, errAcc.Flush(0)...)
	var errorCount, warningCount uint64
	for _, rec := range pending {
		if rec.Type == erroracc.LevelError {
			errorCount += rec.Count
		} else {
			warningCount += rec.Count
		}
		if err := writeErrorRecord(out, rec); err != nil {
			return Result{}, err
		}
	}

	final := o.baseMetadata(exportID, startTime, version)
	var labelsSeen, relTypesSeen map[string]struct{}
	var relProcessed uint64
	if nodeState != nil {
		labelsSeen = nodeState.labelsSeen
	}
	if relState != nil {
		relTypesSeen = relState.relTypesSeen
		relProcessed = relResult.Processed
	}
	final.DatabaseStatistics = metadata.DatabaseStatistics{
		NodeCount:    int64(nodeResult.Processed),
		RelCount:     int64(relProcessed),
		LabelCount:   len(labelsSeen),
		RelTypeCount: len(relTypesSeen),
	}
	final.ErrorSummary = metadata.ErrorSummary{ErrorCount: errorCount, WarningCount: warningCount, HasErrors: errorCount > 0}
	final.ExportManifest = metadata.ExportManifest{
		TotalExportDurationSeconds: time.Since(startTime).Seconds(),
		FileStatistics:             fileStats,
		Cancelled:                  true,
	}

	if err := metaWriter.PatchFinal(out, final, width); err != nil {
		return Result{}, err
	}
	return Result{Metadata: final, NodesProcessed: nodeResult.Processed, RelsProcessed: relProcessed, Cancelled: true}, nil
}

// baseMetadata builds the fields known before either pass runs.
func (o *Orchestrator) baseMetadata(exportID string, startTime time.Time, version graphclient.Version) metadata.Metadata {
	producerVersion := o.ProducerVersion
	if producerVersion == "" {
		producerVersion = "dev"
	}
	return metadata.Metadata{
		FormatVersion: metadata.FormatVersion,
		ExportMetadata: metadata.ExportMetaBlock{
			ExportID:           exportID,
			ExportTimestampUTC: startTime.UTC().Format(time.RFC3339),
			ExportMode:         "full",
		},
		Producer: metadata.Producer{Name: "n4jet-export", Version: producerVersion},
		SourceSystem: metadata.SourceSystem{
			Type:     "neo4j",
			Version:  versionLabel(version),
			Database: metadata.DatabaseRef{Name: o.DatabaseName},
		},
		SupportedRecordTypes: []string{"node", "relationship", "error", "warning"},
		Environment: map[string]string{
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		},
		Security: map[string]any{
			"allow_insecure_transport": o.Config.AllowInsecure,
		},
		Compatibility: map[string]any{
			"min_reader_format_version": metadata.FormatVersion,
		},
		Compression: map[string]any{
			"enabled": false,
		},
		ExportManifest: metadata.ExportManifest{FileStatistics: []metadata.FileStatistic{}},
	}
}

func versionLabel(v graphclient.Version) string {
	switch v {
	case graphclient.Version4x:
		return "4.x"
	case graphclient.Version5x:
		return "5.x"
	case graphclient.Version6x:
		return "6.x"
	default:
		return "unknown"
	}
}

// nodeHandler folds one node record into nodeState: compute its content
// hash, populate the endpoint table, serialize it, and write it to out.
func (o *Orchestrator) nodeHandler(
	w *jsonstream.Writer, s *serialize.Serializer, endpoints hashid.EndpointStore,
	out io.Writer, errAcc *erroracc.Accumulator, nowFn func() time.Time,
) paginate.RecordHandler[*nodePassState] {
	return func(_ context.Context, rec graphclient.Record, state *nodePassState) (*nodePassState, error) {
		n, ok := recordToNode(rec)
		if !ok {
			errAcc.Track(erroracc.LevelWarning, "serialization", "node", "UnprocessableRecordError", "",
				"node record missing a usable element_id")
			return state, nil
		}

		contentHash := ""
		if s.Limits.EnableHashedIDs {
			contentHash = hashid.NodeHash(n.Labels, n.Properties)
		}
		endpoints.Put(n.ElementID, contentHash)

		w.Reset()
		s.NodeRecord(w, n, contentHash)
		if w.OverHardCap() {
			errAcc.Track(erroracc.LevelError, "serialization", "node", "RecordTooLargeError", n.ElementID,
				jsonstream.ErrRecordTooLarge.Error())
			return state, nil
		}
		if _, err := out.Write(w.Bytes()); err != nil {
			return state, n4jeterr.Wrap(n4jeterr.KindFileSystem, "writing node record", err)
		}
		if _, err := out.Write(newline); err != nil {
			return state, n4jeterr.Wrap(n4jeterr.KindFileSystem, "writing node record", err)
		}

		state.count++
		state.bytesWritten += int64(w.Len()) + 1
		state.labelStats.Record(n.Labels, w.Len(), nowFn().UnixMilli())
		for _, l := range n.Labels {
			state.labelsSeen[l] = struct{}{}
		}
		return state, nil
	}
}

// relHandler mirrors nodeHandler for relationship records, resolving
// endpoint hashes with the missing-endpoint fallback from spec.md §8's
// S3 scenario: an unresolved endpoint degrades to an empty-string hash
// plus a tracked warning, never a fatal error.
func (o *Orchestrator) relHandler(
	w *jsonstream.Writer, s *serialize.Serializer, endpoints hashid.EndpointStore,
	out io.Writer, errAcc *erroracc.Accumulator, nowFn func() time.Time,
) paginate.RecordHandler[*relPassState] {
	return func(_ context.Context, rec graphclient.Record, state *relPassState) (*relPassState, error) {
		r, ok := recordToRelationship(rec)
		if !ok {
			errAcc.Track(erroracc.LevelWarning, "serialization", "relationship", "UnprocessableRecordError", "",
				"relationship record missing a usable element_id")
			return state, nil
		}

		var startHash, endHash, identityHash string
		if s.Limits.EnableHashedIDs {
			identityHash = hashid.RelationshipHash(r.Type, r.StartElementID, r.EndElementID, r.Properties)
			var okS, okE bool
			startHash, okS = endpoints.Get(r.StartElementID)
			endHash, okE = endpoints.Get(r.EndElementID)
			if !okS {
				errAcc.Track(erroracc.LevelWarning, "access", "relationship", "MissingEndpointError", r.ElementID,
					"Stable ID not found for start node")
				state.missingEndpoints++
			}
			if !okE {
				errAcc.Track(erroracc.LevelWarning, "access", "relationship", "MissingEndpointError", r.ElementID,
					"Stable ID not found for end node")
				state.missingEndpoints++
			}
		}

		w.Reset()
		s.RelationshipRecord(w, r, identityHash, startHash, endHash)
		if w.OverHardCap() {
			errAcc.Track(erroracc.LevelError, "serialization", "relationship", "RecordTooLargeError", r.ElementID,
				jsonstream.ErrRecordTooLarge.Error())
			return state, nil
		}
		if _, err := out.Write(w.Bytes()); err != nil {
			return state, n4jeterr.Wrap(n4jeterr.KindFileSystem, "writing relationship record", err)
		}
		if _, err := out.Write(newline); err != nil {
			return state, n4jeterr.Wrap(n4jeterr.KindFileSystem, "writing relationship record", err)
		}

		state.count++
		state.bytesWritten += int64(w.Len()) + 1
		state.typeStats.Record([]string{r.Type}, w.Len(), nowFn().UnixMilli())
		state.relTypesSeen[r.Type] = struct{}{}
		return state, nil
	}
}

var newline = []byte{'\n'}

// writeErrorRecord marshals one flushed erroracc.Record as a single JSON
// line, matching spec.md §4.5's in-band error/warning record shape. Plain
// encoding/json is appropriate here (unlike the node/relationship hot
// path): Record is a small, fixed-shape struct, not an open-ended Value
// tree.
func writeErrorRecord(out io.Writer, rec erroracc.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return n4jeterr.Wrap(n4jeterr.KindSerialization, "marshaling error/warning record", err)
	}
	if _, err := out.Write(body); err != nil {
		return n4jeterr.Wrap(n4jeterr.KindFileSystem, "writing error/warning record", err)
	}
	if _, err := out.Write(newline); err != nil {
		return n4jeterr.Wrap(n4jeterr.KindFileSystem, "writing error/warning record", err)
	}
	return nil
}

func sortedSetKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
