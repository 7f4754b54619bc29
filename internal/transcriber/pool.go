package transcriber

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keweikao/sales-transcribe/internal/audioref"
	"github.com/keweikao/sales-transcribe/internal/logging"
	"github.com/keweikao/sales-transcribe/internal/model"
)

// modelBaseNames maps the spec's modelSize enum to the GGML model's base
// file name, without extension or quantization suffix — NewEngine
// appends the suffix the resolved compute type selects.
var modelBaseNames = map[string]string{
	"tiny":     "ggml-tiny",
	"base":     "ggml-base",
	"small":    "ggml-small",
	"medium":   "ggml-medium",
	"large-v3": "ggml-large-v3",
}

// PoolConfig configures the Parallel Transcriber's worker pool.
type PoolConfig struct {
	ModelDir     string
	ModelSize    string
	Device       string
	ComputeType  string
	MaxWorkers   int
	Language     string
	EngineParams map[string]float64
	Logger       *logging.Logger
}

// Pool is a bounded pool of per-worker whisper.cpp engines.
type Pool struct {
	engines []*Engine
	log     *logging.ContextLogger
}

// NewPool resolves the model path, determines the effective compute type,
// and loads one Engine per worker (spec section 4.3: "each worker loads
// its own model instance").
func NewPool(cfg PoolConfig) (*Pool, error) {
	baseName, ok := modelBaseNames[cfg.ModelSize]
	if !ok {
		return nil, fmt.Errorf("unknown model size %q", cfg.ModelSize)
	}
	modelPath := filepath.Join(cfg.ModelDir, baseName)

	computeType := resolveComputeType(cfg.ComputeType, cfg.Device)
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 1
	}

	log := cfg.Logger.With("transcriber")

	engines := make([]*Engine, 0, workers)
	for i := 0; i < workers; i++ {
		eng, err := NewEngine(EngineConfig{
			ModelPath:    modelPath,
			Language:     cfg.Language,
			ComputeType:  computeType,
			EngineParams: cfg.EngineParams,
		})
		if err != nil {
			for _, e := range engines {
				e.Close()
			}
			return nil, fmt.Errorf("load worker engine %d/%d: %w", i+1, workers, err)
		}
		engines = append(engines, eng)
	}

	log.InfoWithFields("transcriber pool ready", map[string]interface{}{
		"workers":     workers,
		"computeType": computeType,
		"model":       baseName + quantSuffix(computeType) + ".bin",
	})

	return &Pool{engines: engines, log: log}, nil
}

// Warmup runs a trivial inference on every worker's engine so the first
// real request does not pay cold-start cost. Failures are logged and
// never returned as fatal (spec section 4.5).
func (p *Pool) Warmup() {
	for i, eng := range p.engines {
		if err := eng.warmup(); err != nil {
			p.log.WarnWithFields("warm-up inference failed", map[string]interface{}{
				"worker": i,
				"error":  err.Error(),
			})
		}
	}
}

// Close releases every worker's engine.
func (p *Pool) Close() {
	for _, e := range p.engines {
		e.Close()
	}
}

// job is one unit of chunk work dispatched to a worker.
type job struct {
	chunk model.Chunk
}

// Run transcribes every chunk in plan against ref, using ctx's deadline
// (if any) to stop submitting new work while letting in-flight chunks
// finish (spec section 5). Results are returned sorted by ChunkID
// regardless of completion order; chunks never submitted because the
// deadline had already passed come back as failed results rather than
// being silently dropped (spec section 5: "partial FinalTranscript ...
// chunksFailed incremented for each unstarted chunk").
func (p *Pool) Run(ctx context.Context, ref model.AudioRef, plan model.ChunkPlan) []model.ChunkResult {
	jobs := make(chan job, len(plan.Chunks))
	results := make(chan model.ChunkResult, len(plan.Chunks))
	workerCount := len(p.engines)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		eng := p.engines[w]
		go func(eng *Engine) {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					results <- model.ChunkResult{
						ChunkID:    j.chunk.ChunkID,
						Status:     model.ChunkFailed,
						ChunkStart: j.chunk.Start,
						ChunkEnd:   j.chunk.End,
						Error:      "deadline exceeded before chunk was started",
					}
					continue
				}
				results <- p.transcribeChunk(ctx, eng, ref, j.chunk)
			}
		}(eng)
	}

	submitted := make(map[int]bool, len(plan.Chunks))
	for _, c := range plan.Chunks {
		select {
		case <-ctx.Done():
		default:
			jobs <- job{chunk: c}
			submitted[c.ChunkID] = true
		}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]model.ChunkResult, 0, len(plan.Chunks))
	for r := range results {
		collected = append(collected, r)
	}

	for _, c := range plan.Chunks {
		if !submitted[c.ChunkID] {
			collected = append(collected, model.ChunkResult{
				ChunkID:    c.ChunkID,
				Status:     model.ChunkFailed,
				ChunkStart: c.Start,
				ChunkEnd:   c.End,
				Error:      "deadline exceeded before chunk was submitted",
			})
		}
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].ChunkID < collected[j].ChunkID })
	return collected
}

// transcribeChunk extracts the chunk's audio, runs ASR, rebases segments
// to global time, and isolates any failure onto the ChunkResult (spec
// section 4.3's per-chunk algorithm and failure semantics).
func (p *Pool) transcribeChunk(ctx context.Context, eng *Engine, ref model.AudioRef, c model.Chunk) model.ChunkResult {
	started := time.Now()
	result := model.ChunkResult{
		ChunkID:    c.ChunkID,
		ChunkStart: c.Start,
		ChunkEnd:   c.End,
	}

	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("transcribe-chunk-%d-%s.wav", c.ChunkID, uuid.NewString()))
	defer os.Remove(tempPath)

	if err := audioref.ExtractChunk(ref, c.Start, c.End, tempPath); err != nil {
		result.Status = model.ChunkFailed
		result.Error = fmt.Sprintf("extract chunk audio: %v", err)
		result.ProcessingTime = time.Since(started)
		return result
	}

	_, samples, err := audioref.Load(tempPath)
	if err != nil {
		result.Status = model.ChunkFailed
		result.Error = fmt.Sprintf("decode chunk audio: %v", err)
		result.ProcessingTime = time.Since(started)
		return result
	}

	asr, err := eng.Transcribe(samples)
	if err != nil {
		result.Status = model.ChunkFailed
		result.Error = err.Error()
		result.ProcessingTime = time.Since(started)
		return result
	}

	segments := make([]model.TranscriptSegment, len(asr.Segments))
	for i, s := range asr.Segments {
		segments[i] = model.TranscriptSegment{
			Start:      s.Start + c.Start,
			End:        s.End + c.Start,
			Text:       s.Text,
			Confidence: s.Confidence,
		}
	}

	result.Status = model.ChunkOK
	result.Segments = segments
	result.DetectedLanguage = asr.DetectedLanguage
	result.LanguageProbability = asr.LanguageProbability
	result.ProcessingTime = time.Since(started)
	return result
}
