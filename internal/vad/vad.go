// Package vad implements the VAD Processor: turning a mono 16kHz audio
// signal into an ordered list of speech intervals. Frame-probability
// inference runs through a Silero VAD ONNX Runtime session; the
// merge/pad/filter pass that turns per-frame probabilities into intervals
// is a pure function of the probability stream, independent of the
// inference engine (see merge.go), so it is unit-testable without ONNX
// Runtime present.
package vad

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/keweikao/sales-transcribe/internal/model"
)

// windowSize is Silero VAD's native frame size at 16kHz (32ms).
const windowSize = 512

// contextSize is the number of trailing samples carried from one window
// into the next, per Silero VAD's streaming input contract.
const contextSize = 64

// Config holds the VAD Processor's tunable parameters (spec section 4.1).
type Config struct {
	Threshold            float64
	MinSpeechDurationMs  int
	MinSilenceDurationMs int
	SpeechPadMs          int
}

var onnxInitOnce sync.Once
var onnxInitErr error

func ensureRuntime() error {
	onnxInitOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		onnxInitErr = ort.InitializeEnvironment()
	})
	return onnxInitErr
}

// Processor owns a Silero VAD ONNX session. Create one per worker if used
// concurrently; the underlying session is not safe for concurrent use.
type Processor struct {
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex

	state   []float32
	context []float32
}

// NewProcessor loads the Silero VAD ONNX model at modelPath.
func NewProcessor(modelPath string) (*Processor, error) {
	if err := ensureRuntime(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Processor{
		session: session,
		state:   make([]float32, 2*1*128),
		context: make([]float32, contextSize),
	}, nil
}

// Close releases the underlying ONNX session.
func (p *Processor) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
}

func (p *Processor) resetState() {
	for i := range p.state {
		p.state[i] = 0
	}
	for i := range p.context {
		p.context[i] = 0
	}
}

// frameProbability runs one Silero VAD inference step over a single
// window of samples and returns the speech probability, updating the
// LSTM state in place for the next call.
func (p *Processor) frameProbability(window []float32) (float32, error) {
	inputData := make([]float32, contextSize+len(window))
	copy(inputData[:contextSize], p.context)
	copy(inputData[contextSize:], window)
	copy(p.context, window[len(window)-contextSize:])

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(inputData))), inputData)
	if err != nil {
		return 0, fmt.Errorf("input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), p.state)
	if err != nil {
		return 0, fmt.Errorf("state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{windowSampleRate})
	if err != nil {
		return 0, fmt.Errorf("sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := p.session.Run([]ort.Value{inputTensor, stateTensor, srTensor}, outputs); err != nil {
		return 0, fmt.Errorf("run inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return 0, fmt.Errorf("unexpected output tensor type")
	}
	stateN, ok := outputs[1].(*ort.Tensor[float32])
	if !ok {
		return 0, fmt.Errorf("unexpected state tensor type")
	}
	copy(p.state, stateN.GetData())

	data := out.GetData()
	if len(data) == 0 {
		return 0, nil
	}
	return data[0], nil
}

const windowSampleRate = 16000

// Detect runs Silero VAD over samples (mono, 16kHz) and returns speech
// intervals satisfying the merge/pad/filter rules in cfg. Deterministic
// for identical input (spec section 4.1's VAD contract).
func (p *Processor) Detect(samples []float32, cfg Config) ([]model.SpeechInterval, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetState()

	frameDurationSec := float64(windowSize) / float64(windowSampleRate)
	probs := make([]float32, 0, len(samples)/windowSize+1)

	for i := 0; i < len(samples); i += windowSize {
		end := i + windowSize
		var window []float32
		if end <= len(samples) {
			window = samples[i:end]
		} else {
			window = make([]float32, windowSize)
			copy(window, samples[i:])
		}
		prob, err := p.frameProbability(window)
		if err != nil {
			return nil, err
		}
		probs = append(probs, prob)
	}

	totalDuration := float64(len(samples)) / float64(windowSampleRate)
	return mergeFrames(probs, frameDurationSec, totalDuration, cfg), nil
}
