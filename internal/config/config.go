// Package config loads and validates the pipeline's configuration. Values
// are merged, in priority order, from built-in defaults, an optional YAML
// file, environment variables (the container boundary), and finally
// explicit CLI flags or library call-site overrides. Unknown fields and
// unknown VAD parameters are rejected at construction, not discovered
// lazily at runtime.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/keweikao/sales-transcribe/internal/errs"
)

// modelSizes are the whisper.cpp GGML model sizes the transcriber accepts.
var modelSizes = map[string]bool{
	"tiny": true, "base": true, "small": true, "medium": true, "large-v3": true,
}

var devices = map[string]bool{"cpu": true, "cuda": true}

var computeTypes = map[string]bool{"auto": true, "int8": true, "float16": true, "float32": true}

var vadPresets = map[string]bool{"meeting": true, "presentation": true, "noisy": true, "default": true}

var outputFormats = map[string]bool{"txt": true, "srt": true, "vtt": true, "json": true}

// vadEngineParams is the closed set of VAD keys the Parallel Transcriber is
// permitted to forward into the inner ASR engine's VAD filter, per the
// "curated param set" design note: an unrecognized key is a configuration
// error, never a silently-dropped no-op.
var vadEngineParams = map[string]bool{
	"threshold":            true,
	"min_speech_duration_ms": true,
	"min_silence_duration_ms": true,
	"speech_pad_ms":        true,
}

// VAD holds the Voice Activity Detection stage's configuration.
type VAD struct {
	Preset              string             `yaml:"preset"`
	Threshold           float64            `yaml:"threshold"`
	MinSpeechDurationMs int                `yaml:"min_speech_duration_ms"`
	MinSilenceDurationMs int               `yaml:"min_silence_duration_ms"`
	SpeechPadMs         int                `yaml:"speech_pad_ms"`
	ModelPath           string             `yaml:"model_path"`
	EngineParams        map[string]float64 `yaml:"engine_params"`
}

// Chunker holds the Audio Chunker stage's configuration.
type Chunker struct {
	TargetChunkDuration float64 `yaml:"target_chunk_duration"`
	MaxChunkDuration    float64 `yaml:"max_chunk_duration"`
	OverlapDuration     float64 `yaml:"overlap_duration"`
	SearchHalfWidth     float64 `yaml:"search_half_width"`
	GapScoreWeight      float64 `yaml:"gap_score_weight"`
}

// Transcriber holds the Parallel Transcriber stage's configuration.
type Transcriber struct {
	ModelSize   string `yaml:"model_size"`
	ModelDir    string `yaml:"model_dir"`
	Device      string `yaml:"device"`
	ComputeType string `yaml:"compute_type"`
	MaxWorkers  int    `yaml:"max_workers"`
	Language    string `yaml:"language"`
}

// Server holds the long-lived-process HTTP surface configuration.
type Server struct {
	BindAddress       string `yaml:"bind_address"`
	EnableDiarization bool   `yaml:"enable_diarization"`
	DiarizationToken  string `yaml:"-"` // populated only from env, never from file
}

// Logging holds the structured logger's configuration.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the single immutable configuration record passed to the
// orchestrator; child stages receive only the sub-fields they need.
type Config struct {
	VAD           VAD         `yaml:"vad"`
	Chunker       Chunker     `yaml:"chunker"`
	Transcriber   Transcriber `yaml:"transcriber"`
	Server        Server      `yaml:"server"`
	Logging       Logging     `yaml:"logging"`
	OutputFormats []string    `yaml:"output_formats"`
	OutputDir     string      `yaml:"output_dir"`
}

// Default returns the built-in default configuration (the "meeting" VAD
// preset, 10-minute target chunks, 6 CPU workers).
func Default() *Config {
	cfg := &Config{}
	cfg.VAD = VAD{
		Preset:               "meeting",
		Threshold:            0.5,
		MinSpeechDurationMs:  250,
		MinSilenceDurationMs: 500,
		SpeechPadMs:          400,
	}
	cfg.Chunker = Chunker{
		TargetChunkDuration: 600,
		MaxChunkDuration:    900,
		OverlapDuration:     2,
		SearchHalfWidth:     30,
		GapScoreWeight:      1.0,
	}
	cfg.Transcriber = Transcriber{
		ModelSize:   "medium",
		Device:      "cpu",
		ComputeType: "auto",
		MaxWorkers:  6,
		Language:    "zh",
	}
	cfg.Server.BindAddress = "localhost:8088"
	cfg.Logging = Logging{Level: "info", Format: "text"}
	cfg.OutputFormats = []string{"txt", "json"}
	return cfg
}

// applyPreset fills threshold/timing fields from a named VAD preset,
// matching spec section 4.1: "meeting" is the defaults, "presentation"
// raises threshold and minimum silence, "noisy" raises threshold further
// and increases padding.
func applyPreset(v *VAD) error {
	switch v.Preset {
	case "", "meeting", "default":
		if v.Preset == "" {
			v.Preset = "default"
		}
		v.Threshold, v.MinSpeechDurationMs, v.MinSilenceDurationMs, v.SpeechPadMs = 0.5, 250, 500, 400
	case "presentation":
		v.Threshold, v.MinSpeechDurationMs, v.MinSilenceDurationMs, v.SpeechPadMs = 0.6, 250, 800, 400
	case "noisy":
		v.Threshold, v.MinSpeechDurationMs, v.MinSilenceDurationMs, v.SpeechPadMs = 0.7, 250, 500, 600
	default:
		return fmt.Errorf("unknown vad preset %q", v.Preset)
	}
	return nil
}

// Load builds a Config by merging defaults, an optional YAML file at path,
// and environment variables, in that order. An empty path skips the file
// layer. Validate then applies the named VAD preset after the file/env
// layers, so a preset always wins over discrete threshold/timing fields
// from the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Config("config.Load", fmt.Errorf("read %s: %w", path, err))
		}
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, errs.Config("config.Load", fmt.Errorf("parse %s: %w", path, err))
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the container-boundary environment variables from
// spec section 6 onto cfg. Unset variables leave the existing value
// untouched.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if s := v.GetString("WHISPER_MODEL_SIZE"); s != "" {
		cfg.Transcriber.ModelSize = s
	}
	if s := v.GetString("WHISPER_DEVICE"); s != "" {
		cfg.Transcriber.Device = s
	}
	if s := v.GetString("WHISPER_COMPUTE_TYPE"); s != "" {
		cfg.Transcriber.ComputeType = s
	}
	if s := v.GetString("VAD_PRESET"); s != "" {
		cfg.VAD.Preset = s
	}
	if s := v.GetString("TRANSCRIBE_WORKERS"); s != "" {
		if n := v.GetInt("TRANSCRIBE_WORKERS"); n > 0 {
			cfg.Transcriber.MaxWorkers = n
		}
	}
	if s := v.GetString("ENABLE_DIARIZATION"); s != "" {
		cfg.Server.EnableDiarization = v.GetBool("ENABLE_DIARIZATION")
	}
	if s := os.Getenv("DIARIZATION_API_TOKEN"); s != "" {
		cfg.Server.DiarizationToken = s
	}
}

// Validate rejects unknown enum values and unknown VAD engine parameters,
// aggregating every violation found rather than stopping at the first
// (spec section 8 scenario 6: "Configuration error raised at process()
// entry, before VAD runs").
func Validate(cfg *Config) error {
	var result *multierror.Error

	if cfg.VAD.Preset != "" {
		v := cfg.VAD
		if err := applyPreset(&v); err != nil {
			result = multierror.Append(result, err)
		} else {
			cfg.VAD = v
		}
	}
	if !(cfg.VAD.Threshold >= 0.0 && cfg.VAD.Threshold <= 1.0) {
		result = multierror.Append(result, fmt.Errorf("vad threshold %v out of range [0,1]", cfg.VAD.Threshold))
	}
	for key := range cfg.VAD.EngineParams {
		if !vadEngineParams[key] {
			result = multierror.Append(result, fmt.Errorf("unrecognized vad engine parameter %q", key))
		}
	}

	if !modelSizes[cfg.Transcriber.ModelSize] {
		result = multierror.Append(result, fmt.Errorf("unknown model size %q", cfg.Transcriber.ModelSize))
	}
	if !devices[cfg.Transcriber.Device] {
		result = multierror.Append(result, fmt.Errorf("unknown device %q", cfg.Transcriber.Device))
	}
	if !computeTypes[cfg.Transcriber.ComputeType] {
		result = multierror.Append(result, fmt.Errorf("unknown compute type %q", cfg.Transcriber.ComputeType))
	}
	if cfg.Transcriber.Device == "cuda" && cfg.Transcriber.ComputeType == "int8" {
		result = multierror.Append(result, fmt.Errorf("compute type int8 is not supported on device cuda"))
	}
	if cfg.Transcriber.MaxWorkers <= 0 {
		result = multierror.Append(result, fmt.Errorf("max_workers must be positive, got %d", cfg.Transcriber.MaxWorkers))
	}

	if cfg.Chunker.MaxChunkDuration < cfg.Chunker.TargetChunkDuration {
		result = multierror.Append(result, fmt.Errorf("max_chunk_duration must be >= target_chunk_duration"))
	}
	if cfg.Chunker.OverlapDuration < 0 || cfg.Chunker.OverlapDuration >= cfg.Chunker.TargetChunkDuration {
		result = multierror.Append(result, fmt.Errorf("overlap_duration must be in [0, target_chunk_duration)"))
	}

	if !vadPresets[cfg.VAD.Preset] {
		result = multierror.Append(result, fmt.Errorf("unknown vad preset %q", cfg.VAD.Preset))
	}

	for _, f := range cfg.OutputFormats {
		if !outputFormats[f] {
			result = multierror.Append(result, fmt.Errorf("unknown output format %q", f))
		}
	}

	if result.ErrorOrNil() != nil {
		return errs.Config("config.Validate", result)
	}
	return nil
}
