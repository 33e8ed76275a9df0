// Package metrics exposes pkgsync's Prometheus counters. They live in a
// private registry and are exported as a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fulmenhq/pkgsync/pkg/safeio"
)

// Registry holds every pkgsync metric.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// cacheLookups counts metadata cache outcomes.
	// Labels: result (hit, miss, corrupt)
	cacheLookups = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pkgsync",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Metadata cache lookups by result",
	}, []string{"result"})

	originFallbacks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "pkgsync",
		Subsystem: "origin",
		Name:      "fallbacks_total",
		Help:      "Downloads retried against the fallback origin",
	})

	// artifactFetches counts artifact downloads.
	// Labels: status (success, error, aborted)
	artifactFetches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pkgsync",
		Subsystem: "fetch",
		Name:      "artifacts_total",
		Help:      "Artifact downloads by status",
	}, []string{"status"})

	artifactBytes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "pkgsync",
		Subsystem: "fetch",
		Name:      "bytes_total",
		Help:      "Expected bytes of successfully downloaded artifacts",
	})

	artifactDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pkgsync",
		Subsystem: "fetch",
		Name:      "artifact_duration_seconds",
		Help:      "Time to download one artifact",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	patchesApplied = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "pkgsync",
		Subsystem: "apply",
		Name:      "patches_total",
		Help:      "Patch steps applied successfully",
	})

	// operations counts top-level operations.
	// Labels: op (download, metadata), outcome (finished, failed, aborted)
	operations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pkgsync",
		Name:      "operations_total",
		Help:      "Top-level operations by outcome",
	}, []string{"op", "outcome"})
)

// CacheLookup records a metadata cache outcome.
func CacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

// OriginFallback records one fallback attempt.
func OriginFallback() {
	originFallbacks.Inc()
}

// ArtifactFetched records one finished artifact download.
func ArtifactFetched(size int64, status string, elapsed time.Duration) {
	artifactFetches.WithLabelValues(status).Inc()
	artifactDuration.Observe(elapsed.Seconds())
	if status == "success" && size > 0 {
		artifactBytes.Add(float64(size))
	}
}

// PatchApplied records one applied chain step.
func PatchApplied() {
	patchesApplied.Inc()
}

// Operation records the outcome of a top-level operation.
func Operation(op, outcome string) {
	operations.WithLabelValues(op, outcome).Inc()
}

// WriteTextfile dumps the registry in text exposition format to path,
// replacing it atomically.
func WriteTextfile(path string) error {
	if err := safeio.MakeParentDir(path); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
