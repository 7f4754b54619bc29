// Package transcriber implements the Parallel Transcriber: a bounded
// worker pool that runs whisper.cpp ASR over each chunk, translates local
// timestamps to global, and isolates per-chunk failures from the rest of
// the run.
package transcriber

import (
	"fmt"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/keweikao/sales-transcribe/internal/model"
)

// EngineConfig configures one whisper.cpp model instance.
type EngineConfig struct {
	// ModelPath is the model's base path — directory plus file stem,
	// without extension or quantization suffix (e.g.
	// ".../ggml-medium"). NewEngine appends the suffix ComputeType
	// selects before loading.
	ModelPath   string
	Language    string // "zh", or "auto"
	Threads     uint
	// ComputeType is the resolved compute type (never "auto"; see
	// resolveComputeType) — the primary lever against OOM on long audio
	// (spec sections 4.3/5). It selects which GGML quantization variant
	// of ModelPath is actually loaded: "int8" loads the q8_0-quantized
	// file (smallest memory footprint, some accuracy loss), "float32"
	// loads the unquantized f32 file (largest footprint, highest
	// fidelity), and "float16" (the default) loads the plain fp16 file
	// whisper.cpp ships without a suffix. This binding's Context has no
	// separate runtime precision knob — GGML quantization is baked into
	// the model file at conversion time — so the choice has to happen
	// here, at load, rather than as a later Context setter.
	ComputeType string
	// EngineParams is the closed set of VAD-related knobs validated at
	// config.Validate. This binding's Context exposes no VAD passthrough
	// hook, and NewEngine neither applies these values to whisper.cpp nor
	// logs them.
	EngineParams map[string]float64
}

// quantSuffix maps a resolved compute type to the GGML file-name suffix
// whisper.cpp's model distribution uses for that quantization.
func quantSuffix(computeType string) string {
	switch computeType {
	case "int8":
		return "-q8_0"
	case "float32":
		return "-f32"
	default: // "float16" loads the plain, unsuffixed fp16 release file.
		return ""
	}
}

// Engine owns exactly one whisper.cpp model + context. Workers never share
// an Engine (spec section 4.3/5: "models are not shared across workers").
type Engine struct {
	model whisper.Model
	ctx   whisper.Context
	mu    sync.Mutex
}

// NewEngine loads a whisper.cpp model and configures a context for
// single-chunk, non-streaming transcription.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	modelFile := cfg.ModelPath + quantSuffix(cfg.ComputeType) + ".bin"
	m, err := whisper.New(modelFile)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", modelFile, err)
	}

	ctx, err := m.NewContext()
	if err != nil {
		return nil, fmt.Errorf("create whisper context: %w", err)
	}

	language := cfg.Language
	if language == "" {
		language = "zh"
	}
	ctx.SetLanguage(language)
	if cfg.Threads > 0 {
		ctx.SetThreads(cfg.Threads)
	}
	ctx.SetTranslate(false)
	ctx.SetSplitOnWord(true)
	ctx.SetTokenTimestamps(true)
	ctx.SetBeamSize(5)

	return &Engine{model: m, ctx: ctx}, nil
}

// Result is a chunk's local-time segments plus the language detected for
// the whole chunk.
type Result struct {
	Segments            []model.TranscriptSegment
	DetectedLanguage     string
	LanguageProbability float64
}

// Transcribe runs ASR over samples (mono float32 at 16kHz) and returns
// local-time segments. The caller rebases them to global time.
func (e *Engine) Transcribe(samples []float32) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(samples) == 0 {
		return Result{}, fmt.Errorf("empty audio samples")
	}

	if err := e.ctx.ResetTimings(); err != nil {
		return Result{}, fmt.Errorf("reset timings: %w", err)
	}

	var segments []model.TranscriptSegment
	segmentCB := func(s whisper.Segment) {
		segments = append(segments, model.TranscriptSegment{
			Start:      s.Start.Seconds(),
			End:        s.End.Seconds(),
			Text:       s.Text,
			Confidence: segmentConfidence(s),
		})
	}

	if err := e.ctx.Process(samples, nil, segmentCB, nil); err != nil {
		return Result{}, fmt.Errorf("process audio: %w", err)
	}

	lang := e.ctx.DetectedLanguage()

	return Result{
		Segments:            segments,
		DetectedLanguage:     lang,
		LanguageProbability: 1.0,
	}, nil
}

// segmentConfidence assigns a confidence value to a whisper.cpp segment:
// 1.0 for any segment with text, 0 for an empty one. No probability is
// read from the binding, so the value does not vary with how certain the
// model was.
func segmentConfidence(s whisper.Segment) float64 {
	if s.Text == "" {
		return 0
	}
	return 1.0
}

// Close releases the whisper.cpp model held by the engine. Garbage
// collection alone is not relied upon since the underlying model can
// carry a large C-heap allocation.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if closer, ok := e.model.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// warmup runs a trivial inference against a synthetic silent buffer so
// the first real request does not pay the cold-start cost (spec section
// 4.5). Warm-up failures are the caller's responsibility to log; they
// must never be treated as fatal.
func (e *Engine) warmup() error {
	silence := make([]float32, 16000) // 1s of silence at 16kHz
	_, err := e.Transcribe(silence)
	return err
}
