// Package pipeline implements the Pipeline Orchestrator: the single
// entry point that sequences VAD Processor, Audio Chunker, Parallel
// Transcriber, and Transcript Merger over one input file, with per-stage
// timing, deadline propagation, and a process warm-up side effect.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keweikao/sales-transcribe/internal/audioref"
	"github.com/keweikao/sales-transcribe/internal/chunker"
	"github.com/keweikao/sales-transcribe/internal/config"
	"github.com/keweikao/sales-transcribe/internal/errs"
	"github.com/keweikao/sales-transcribe/internal/logging"
	"github.com/keweikao/sales-transcribe/internal/merger"
	"github.com/keweikao/sales-transcribe/internal/metrics"
	"github.com/keweikao/sales-transcribe/internal/model"
	"github.com/keweikao/sales-transcribe/internal/transcriber"
	"github.com/keweikao/sales-transcribe/internal/vad"
)

// Pipeline owns the long-lived resources (VAD session, transcriber
// worker pool) that a single warm-up should pay for once, then reuses
// them across every Process call.
type Pipeline struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *metrics.Registry

	vadProc *vad.Processor
	pool    *transcriber.Pool
}

// New constructs a Pipeline from cfg, loading the VAD model and one
// whisper.cpp engine per worker. This is the expensive step the CLI and
// the HTTP server both want to pay exactly once, before serving any
// request (spec section 4.5: process warm-up).
func New(cfg *config.Config, log *logging.Logger, reg *metrics.Registry) (*Pipeline, error) {
	vadProc, err := vad.NewProcessor(cfg.VAD.ModelPath)
	if err != nil {
		return nil, errs.ModelLoad("pipeline.New", fmt.Errorf("load vad model: %w", err))
	}

	pool, err := transcriber.NewPool(transcriber.PoolConfig{
		ModelDir:     cfg.Transcriber.ModelDir,
		ModelSize:    cfg.Transcriber.ModelSize,
		Device:       cfg.Transcriber.Device,
		ComputeType:  cfg.Transcriber.ComputeType,
		MaxWorkers:   cfg.Transcriber.MaxWorkers,
		Language:     cfg.Transcriber.Language,
		EngineParams: cfg.VAD.EngineParams,
		Logger:       log,
	})
	if err != nil {
		vadProc.Close()
		return nil, errs.ModelLoad("pipeline.New", fmt.Errorf("load transcriber pool: %w", err))
	}

	return &Pipeline{cfg: cfg, log: log, metrics: reg, vadProc: vadProc, pool: pool}, nil
}

// Warmup runs a trivial inference through every worker engine so the
// first real request does not pay cold-start cost. It never returns an
// error; failures are logged by the pool itself (spec section 4.5).
func (p *Pipeline) Warmup() {
	p.pool.Warmup()
}

// Close releases every resource the Pipeline holds.
func (p *Pipeline) Close() {
	p.vadProc.Close()
	p.pool.Close()
}

// Process runs the four stages in order over audioPath and returns a
// FinalTranscript. If ctx carries a deadline, the Parallel Transcriber
// stage stops submitting new chunk jobs once it passes, returning a
// partial result with chunksFailed counting unstarted chunks rather than
// blocking indefinitely or dropping them silently (spec section 5).
func (p *Pipeline) Process(ctx context.Context, audioPath string) (model.FinalTranscript, error) {
	runID := uuid.NewString()
	log := p.log.With("pipeline").WithFields(map[string]interface{}{"runId": runID})
	if p.metrics != nil {
		p.metrics.PipelineRuns.Inc()
	}

	var timings []model.StageTiming
	stage := func(name string, fn func() error) error {
		started := time.Now()
		err := fn()
		elapsed := time.Since(started)
		timings = append(timings, model.StageTiming{Stage: name, Elapsed: elapsed})
		if p.metrics != nil {
			p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		}
		log.InfoWithFields("stage complete", map[string]interface{}{"stage": name, "elapsedMs": elapsed.Milliseconds()})
		return err
	}

	var ref model.AudioRef
	var samples []float32
	if err := stage("load", func() error {
		var err error
		ref, samples, err = audioref.Load(audioPath)
		return err
	}); err != nil {
		p.recordError(errs.KindInputIO)
		return model.FinalTranscript{}, errs.InputIO("pipeline.Process", err)
	}

	var speech []model.SpeechInterval
	if err := stage("vad", func() error {
		var err error
		speech, err = p.vadProc.Detect(samples, vad.Config{
			Threshold:            p.cfg.VAD.Threshold,
			MinSpeechDurationMs:  p.cfg.VAD.MinSpeechDurationMs,
			MinSilenceDurationMs: p.cfg.VAD.MinSilenceDurationMs,
			SpeechPadMs:          p.cfg.VAD.SpeechPadMs,
		})
		return err
	}); err != nil {
		p.recordError(errs.KindModelLoad)
		return model.FinalTranscript{}, errs.ModelLoad("pipeline.Process", fmt.Errorf("vad: %w", err))
	}

	var plan model.ChunkPlan
	_ = stage("chunk", func() error {
		plan = chunker.Plan(speech, ref.Duration, chunker.Config{
			TargetChunkDuration: p.cfg.Chunker.TargetChunkDuration,
			MaxChunkDuration:    p.cfg.Chunker.MaxChunkDuration,
			OverlapDuration:     p.cfg.Chunker.OverlapDuration,
			SearchHalfWidth:     p.cfg.Chunker.SearchHalfWidth,
			GapScoreWeight:      p.cfg.Chunker.GapScoreWeight,
		})
		return nil
	})

	var results []model.ChunkResult
	_ = stage("transcribe", func() error {
		results = p.pool.Run(ctx, ref, plan)
		return nil
	})

	var final model.FinalTranscript
	_ = stage("merge", func() error {
		final = merger.Merge(results, p.cfg.Chunker.OverlapDuration)
		return nil
	})

	if p.metrics != nil {
		p.metrics.ObserveChunkResults(final.ChunksProcessed, final.ChunksFailed)
	}

	final.Metadata = model.Metadata{
		RunID:        runID,
		ModelSize:    p.cfg.Transcriber.ModelSize,
		Language:     p.cfg.Transcriber.Language,
		StageTimings: timings,
		DeadlineHit:  ctx.Err() != nil,
	}

	log.InfoWithFields("run complete", map[string]interface{}{
		"chunksProcessed": final.ChunksProcessed,
		"chunksFailed":    final.ChunksFailed,
		"deadlineHit":     final.Metadata.DeadlineHit,
	})

	return final, nil
}

func (p *Pipeline) recordError(kind errs.Kind) {
	if p.metrics != nil {
		p.metrics.PipelineErrors.WithLabelValues(string(kind)).Inc()
	}
}
