package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keweikao/sales-transcribe/internal/errs"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "meeting", cfg.VAD.Preset)
}

func TestValidate_AggregatesEveryViolation(t *testing.T) {
	cfg := Default()
	cfg.VAD.Preset = "bogus"
	cfg.Transcriber.ModelSize = "huge"
	cfg.Transcriber.Device = "tpu"
	cfg.Transcriber.MaxWorkers = 0
	cfg.Chunker.MaxChunkDuration = 1
	cfg.Chunker.TargetChunkDuration = 600
	cfg.OutputFormats = []string{"pdf"}

	err := Validate(cfg)
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, "configuration", string(kind))
	// every distinct violation should show up in the aggregated message
	msg := err.Error()
	for _, want := range []string{"vad preset", "model size", "device", "max_workers", "max_chunk_duration", "output format"} {
		assert.Contains(t, msg, want)
	}
}

func TestValidate_RejectsUnrecognizedVADEngineParam(t *testing.T) {
	cfg := Default()
	cfg.VAD.EngineParams = map[string]float64{"bogus_param": 1}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized vad engine parameter")
}

func TestValidate_RejectsCudaInt8Combo(t *testing.T) {
	cfg := Default()
	cfg.Transcriber.Device = "cuda"
	cfg.Transcriber.ComputeType = "int8"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "int8 is not supported on device cuda")
}

func TestApplyPreset_EachKnownPresetSetsPositiveValues(t *testing.T) {
	for _, preset := range []string{"meeting", "presentation", "noisy", "default"} {
		v := VAD{Preset: preset}
		require.NoError(t, applyPreset(&v))
		assert.True(t, v.Threshold > 0)
		assert.True(t, v.MinSpeechDurationMs > 0)
	}
}

func TestLoad_MissingPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Transcriber.ModelSize, cfg.Transcriber.ModelSize)
}
