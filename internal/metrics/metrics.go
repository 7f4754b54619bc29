// Package metrics exposes the pipeline's optional counters and
// histograms (spec section 5: "metrics counters ... atomic or guarded")
// as Prometheus collectors, reachable over the orchestrator's HTTP
// surface at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every collector the pipeline updates. A single
// Registry is created per process and threaded through the orchestrator
// and worker pool rather than relying on the global default registerer,
// so tests can construct an isolated instance.
type Registry struct {
	reg *prometheus.Registry

	ChunksProcessed prometheus.Counter
	ChunksFailed    prometheus.Counter
	StageDuration   *prometheus.HistogramVec
	PipelineRuns    prometheus.Counter
	PipelineErrors  *prometheus.CounterVec
}

// New builds a Registry with every collector registered against its own
// prometheus.Registry, so Gatherer() never leaks process/go collectors
// the caller did not ask for.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		ChunksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sales_transcribe",
			Name:      "chunks_processed_total",
			Help:      "Chunks transcribed successfully.",
		}),
		ChunksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sales_transcribe",
			Name:      "chunks_failed_total",
			Help:      "Chunks that failed ASR or audio extraction.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sales_transcribe",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		PipelineRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sales_transcribe",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline invocations started.",
		}),
		PipelineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales_transcribe",
			Name:      "pipeline_errors_total",
			Help:      "Pipeline invocations that ended in an infrastructure error, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(r.ChunksProcessed, r.ChunksFailed, r.StageDuration, r.PipelineRuns, r.PipelineErrors)
	return r
}

// Gatherer exposes the underlying registry for the HTTP /metrics handler.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveChunkResults folds a batch of chunk outcomes into the counters
// in one call, used by the orchestrator after the Parallel Transcriber
// stage completes.
func (r *Registry) ObserveChunkResults(ok, failed int) {
	r.ChunksProcessed.Add(float64(ok))
	r.ChunksFailed.Add(float64(failed))
}
