// Package audioref normalizes arbitrary input audio into the mono 16kHz
// PCM form every other stage expects, and extracts per-chunk artifacts for
// the Parallel Transcriber. Normalization and extraction both go through
// ffmpeg so any container/codec ffmpeg understands is a valid pipeline
// input.
package audioref

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/keweikao/sales-transcribe/internal/errs"
	"github.com/keweikao/sales-transcribe/internal/model"
)

const (
	targetSampleRate = 16000
	targetChannels   = 1
)

// Load normalizes the file at path to mono 16kHz PCM in a temp WAV file,
// decodes it into float32 samples in [-1, 1], and returns the resulting
// AudioRef alongside the decoded samples. The temp WAV is removed before
// Load returns; downstream stages operate on the in-memory samples.
//
// Decode/resample failure is an Input I/O error (spec section 4.1).
func Load(path string) (model.AudioRef, []float32, error) {
	if _, err := os.Stat(path); err != nil {
		return model.AudioRef{}, nil, errs.InputIO("audioref.Load", fmt.Errorf("stat %s: %w", path, err))
	}

	normalized := filepath.Join(os.TempDir(), fmt.Sprintf("transcribe-normalized-%s.wav", uuid.NewString()))
	defer os.Remove(normalized)

	if err := normalize(path, normalized); err != nil {
		return model.AudioRef{}, nil, errs.InputIO("audioref.Load", fmt.Errorf("normalize %s: %w", path, err))
	}

	samples, err := decodeWAV(normalized)
	if err != nil {
		return model.AudioRef{}, nil, errs.InputIO("audioref.Load", fmt.Errorf("decode normalized audio: %w", err))
	}

	ref := model.AudioRef{
		Path:       path,
		SampleRate: targetSampleRate,
		Channels:   targetChannels,
		Duration:   float64(len(samples)) / float64(targetSampleRate),
	}
	return ref, samples, nil
}

// normalize resamples/remixes src to mono 16kHz PCM16 WAV at dst using
// ffmpeg, the same fluent-builder idiom used elsewhere in the corpus for
// audio extraction.
func normalize(src, dst string) error {
	return ffmpeg.Input(src).
		Output(dst, ffmpeg.KwArgs{
			"acodec": "pcm_s16le",
			"ar":     fmt.Sprintf("%d", targetSampleRate),
			"ac":     fmt.Sprintf("%d", targetChannels),
			"f":      "wav",
		}).
		OverWriteOutput().
		Silent(true).
		Run()
}

// ExtractChunk cuts [start, end) from ref into a self-contained mono 16kHz
// WAV at dst (spec section 4.3, step 1). Callers own deletion of dst.
func ExtractChunk(ref model.AudioRef, start, end float64, dst string) error {
	duration := end - start
	if duration <= 0 {
		return fmt.Errorf("audioref.ExtractChunk: non-positive duration %.3f", duration)
	}
	return ffmpeg.Input(ref.Path, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", start)}).
		Output(dst, ffmpeg.KwArgs{
			"t":      fmt.Sprintf("%.3f", duration),
			"acodec": "pcm_s16le",
			"ar":     fmt.Sprintf("%d", targetSampleRate),
			"ac":     fmt.Sprintf("%d", targetChannels),
			"f":      "wav",
		}).
		OverWriteOutput().
		Silent(true).
		Run()
}

// decodeWAV reads a mono 16-bit PCM WAV file into float32 samples in
// [-1, 1].
func decodeWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return pcmToFloat32(buf), nil
}

func pcmToFloat32(buf *audio.IntBuffer) []float32 {
	samples := make([]float32, len(buf.Data))
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	maxVal := float32(int(1) << (bitDepth - 1))
	for i, v := range buf.Data {
		samples[i] = float32(v) / maxVal
	}
	return samples
}
