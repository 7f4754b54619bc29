package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frames(spec ...float32) []float32 { return spec }

func TestMergeFrames_ShortIslandDropped(t *testing.T) {
	cfg := Config{Threshold: 0.5, MinSpeechDurationMs: 250, MinSilenceDurationMs: 500, SpeechPadMs: 0}
	// one frame = 32ms; a single speech frame (~32ms) is well under the
	// 250ms minimum and must not survive.
	probs := frames(0, 0, 0.9, 0, 0)
	intervals := mergeFrames(probs, 0.032, float64(len(probs))*0.032, cfg)
	assert.Empty(t, intervals)
}

func TestMergeFrames_MergesShortSilence(t *testing.T) {
	cfg := Config{Threshold: 0.5, MinSpeechDurationMs: 0, MinSilenceDurationMs: 500, SpeechPadMs: 0}
	frameDur := 0.1 // 100ms frames
	// speech, speech, silence(100ms < 500ms), speech, speech -> one run
	probs := frames(0.9, 0.9, 0.1, 0.9, 0.9)
	intervals := mergeFrames(probs, frameDur, float64(len(probs))*frameDur, cfg)
	require.Len(t, intervals, 1)
	assert.InDelta(t, 0.0, intervals[0].Start, 1e-9)
	assert.InDelta(t, 0.5, intervals[0].End, 1e-9)
}

func TestMergeFrames_KeepsLongSilenceSeparate(t *testing.T) {
	cfg := Config{Threshold: 0.5, MinSpeechDurationMs: 0, MinSilenceDurationMs: 200, SpeechPadMs: 0}
	frameDur := 0.1
	// silence gap of 300ms (3 frames) exceeds the 200ms minimum.
	probs := frames(0.9, 0.9, 0.1, 0.1, 0.1, 0.9, 0.9)
	intervals := mergeFrames(probs, frameDur, float64(len(probs))*frameDur, cfg)
	require.Len(t, intervals, 2)
	assert.Less(t, intervals[0].End, intervals[1].Start)
}

func TestMergeFrames_PaddingClampedToBoundary(t *testing.T) {
	cfg := Config{Threshold: 0.5, MinSpeechDurationMs: 0, MinSilenceDurationMs: 0, SpeechPadMs: 500}
	frameDur := 0.1
	total := float64(len(frames(0.9, 0.9))) * frameDur // 0.2s total
	intervals := mergeFrames(frames(0.9, 0.9), frameDur, total, cfg)
	require.Len(t, intervals, 1)
	assert.Equal(t, 0.0, intervals[0].Start)
	assert.Equal(t, total, intervals[0].End)
}

func TestMergeFrames_NonOverlappingIncreasing(t *testing.T) {
	cfg := Config{Threshold: 0.5, MinSpeechDurationMs: 0, MinSilenceDurationMs: 100, SpeechPadMs: 200}
	frameDur := 0.1
	probs := frames(0.9, 0.1, 0.1, 0.1, 0.9, 0.1, 0.1, 0.1, 0.9)
	total := float64(len(probs)) * frameDur
	intervals := mergeFrames(probs, frameDur, total, cfg)
	for i := 1; i < len(intervals); i++ {
		assert.LessOrEqual(t, intervals[i-1].End, intervals[i].Start)
		assert.Less(t, intervals[i-1].Start, intervals[i].Start)
	}
	for _, iv := range intervals {
		assert.Greater(t, iv.Duration, 0.0)
		assert.GreaterOrEqual(t, iv.Start, 0.0)
		assert.LessOrEqual(t, iv.End, total)
	}
}
