// Command n4jet-export is the CLI entry point spec.md §1 names as an
// external collaborator: it wires the library packages to a real Neo4j
// driver, the OS environment, and the process lifecycle. The core packages
// (export, paginate, serialize, ...) never import this package or anything
// it depends on.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/n4jet/neo4j-export/config"
	"github.com/n4jet/neo4j-export/export"
	"github.com/n4jet/neo4j-export/graphclient"
	"github.com/n4jet/neo4j-export/hashid"
	"github.com/n4jet/neo4j-export/internal/watchdog"
	"github.com/n4jet/neo4j-export/n4jeterr"
	"github.com/n4jet/neo4j-export/telemetry"
)

// version is overridable at link time via -ldflags "-X main.version=...".
var version = "dev"

// newRunner constructs the graphclient.Runner that talks to the real source
// database. spec.md §1 puts "the database driver itself" out of scope: this
// module names the interface the core consumes but ships no Bolt/HTTP
// client implementation, so wiring a concrete driver (e.g. the neo4j-go-
// driver package) is the integrator's responsibility at this single seam.
var newRunner = func(cfg config.Config) (graphclient.Runner, error) {
	return nil, n4jeterr.New(n4jeterr.KindConfig,
		"no graphclient.Runner wired: replace cmd/n4jet-export/main.go's newRunner "+
			"with a real Neo4j driver adapter before running this binary")
}

func main() {
	os.Exit(run())
}

func run() int {
	yamlPath := flag.String("config", "", "optional YAML config overlay")
	database := flag.String("database", "neo4j", "source database name, used only for the output filename")
	metricsPort := flag.Int("metrics-port", 0, "if nonzero, serve Prometheus metrics on this port")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "n4jet-export").Logger()

	cfg := config.Defaults()
	if *yamlPath != "" {
		loaded, err := config.FromYAML(*yamlPath)
		if err != nil {
			logger.Error().Err(err).Msg("loading YAML config")
			return n4jeterr.ExitCode(err)
		}
		cfg = loaded
	}
	cfg, err := config.FromEnviron(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("loading environment config")
		return n4jeterr.ExitCode(err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return n4jeterr.ExitCode(err)
	}
	if cfg.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	}

	recorder := telemetry.NewRecorder()
	if *metricsPort != 0 {
		server, err := telemetry.StartServer(telemetry.ServerConfig{Port: *metricsPort, Registry: recorder.Registry})
		if err != nil {
			logger.Warn().Err(err).Msg("metrics server did not start")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = telemetry.Shutdown(ctx, server)
			}()
		}
	}

	runner, err := newRunner(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("constructing graph client")
		return n4jeterr.ExitCode(err)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	go watchdog.ListenForSignals(ctx, cancel)
	endpoints := hashid.NewMemStore(0)
	res := &watchdog.Resource{
		Limits: watchdog.Limits{
			MaxMemoryMB: cfg.MaxMemoryMB,
			MinDiskGB:   cfg.MinDiskGB,
			OutputDir:   cfg.OutputDirectory,
		},
		EndpointLen: endpoints.Len,
		Logger:      logger,
	}
	go res.Run(ctx, cancel)

	tmp, err := export.CreateTempFile(cfg.OutputDirectory)
	if err != nil {
		logger.Error().Err(err).Msg("creating output temp file")
		return n4jeterr.ExitCode(err)
	}
	tmpPath := tmp.Name()

	orch := &export.Orchestrator{
		Config:          cfg,
		Runner:          runner,
		DatabaseName:    *database,
		Endpoints:       endpoints,
		Recorder:        recorder,
		Logger:          logger,
		ProducerVersion: version,
	}

	start := time.Now()
	result, runErr := orch.Run(ctx, tmp)
	if closeErr := tmp.Close(); runErr == nil {
		runErr = closeErr
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("export failed")
		export.DiscardOutput(tmpPath)
		if cause := context.Cause(ctx); cause != nil && cause != context.Canceled {
			runErr = cause
		}
		return n4jeterr.ExitCode(runErr)
	}

	if result.Cancelled {
		logger.Warn().Msg("export cancelled; discarding partial output")
		export.DiscardOutput(tmpPath)
		return n4jeterr.KindCancelled.ExitCode()
	}

	filename := export.BuildFilename(*database, start, int64(result.NodesProcessed), int64(result.RelsProcessed),
		result.Metadata.ExportMetadata.ExportID)
	final, err := export.FinalizeOutput(tmpPath, cfg.OutputDirectory, filename)
	if err != nil {
		logger.Error().Err(err).Msg("finalizing output file")
		return n4jeterr.ExitCode(err)
	}

	logger.Info().Str("file", final).Uint64("nodes", result.NodesProcessed).
		Uint64("relationships", result.RelsProcessed).Dur("duration", time.Since(start)).
		Msg("export complete")
	return 0
}
