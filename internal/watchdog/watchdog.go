// Package watchdog implements the two auxiliary concurrent tasks spec.md §5
// permits alongside the single writer task: a resource watchdog polling
// memory and disk headroom, and a signal listener translating SIGINT/SIGTERM
// into cooperative cancellation. Both are external collaborators per spec.md
// §1 — the core (export.Orchestrator) depends only on context.Context, never
// on this package.
package watchdog

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/n4jet/neo4j-export/n4jeterr"
)

// Limits is the subset of config.Config the resource watchdog polls against.
type Limits struct {
	MaxMemoryMB int
	MinDiskGB   int
	OutputDir   string
}

// EndpointLenFunc exposes hashid.EndpointStore.Len() without this package
// importing hashid, so the watchdog can log approximate map growth without
// depending on the writer task's internals.
type EndpointLenFunc func() int

// Resource polls process memory and output-volume free disk space at
// Interval, cancelling via Cancel with a KindResource error the moment
// either threshold is crossed, per spec.md §5/§6's max_memory_mb and
// min_disk_gb. A zero Limits field disables that particular check.
type Resource struct {
	Limits      Limits
	Interval    time.Duration
	EndpointLen EndpointLenFunc
	Logger      zerolog.Logger
}

// Run blocks until ctx is done or a threshold is crossed, in which case it
// calls cancel and returns. Intended to be started with `go r.Run(ctx, cancel)`.
func (r *Resource) Run(ctx context.Context, cancel context.CancelCauseFunc) {
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.check(); err != nil {
				r.Logger.Warn().Err(err).Msg("resource watchdog tripped; cancelling export")
				cancel(err)
				return
			}
		}
	}
}

func (r *Resource) check() error {
	if r.Limits.MaxMemoryMB > 0 {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		usedMB := int(mem.Sys / (1024 * 1024))
		if usedMB > r.Limits.MaxMemoryMB {
			return n4jeterr.New(n4jeterr.KindResource,
				"process memory exceeded max_memory_mb threshold")
		}
	}
	if r.Limits.MinDiskGB > 0 && r.Limits.OutputDir != "" {
		var stat syscall.Statfs_t
		if err := syscall.Statfs(r.Limits.OutputDir, &stat); err == nil {
			freeGB := int(stat.Bavail * uint64(stat.Bsize) / (1024 * 1024 * 1024))
			if freeGB < r.Limits.MinDiskGB {
				return n4jeterr.New(n4jeterr.KindResource,
					"output volume free space fell below min_disk_gb threshold")
			}
		}
	}
	if r.EndpointLen != nil {
		r.Logger.Debug().Int("endpoint_count", r.EndpointLen()).Msg("resource watchdog tick")
	}
	return nil
}

// ListenForSignals cancels with a KindCancelled error on the first SIGINT or
// SIGTERM, and restores default signal handling so a second signal kills the
// process immediately. Intended to be started with
// `go ListenForSignals(ctx, cancel)`.
func ListenForSignals(ctx context.Context, cancel context.CancelCauseFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-ctx.Done():
		return
	case <-sig:
		cancel(n4jeterr.New(n4jeterr.KindCancelled, "received interrupt signal"))
	}
}
