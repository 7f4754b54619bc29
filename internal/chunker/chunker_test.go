package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keweikao/sales-transcribe/internal/model"
)

func defaultConfig() Config {
	return Config{
		TargetChunkDuration: 600,
		MaxChunkDuration:    900,
		OverlapDuration:     2,
		SearchHalfWidth:     30,
		GapScoreWeight:      1.0,
	}
}

func assertInvariants(t *testing.T, plan model.ChunkPlan, duration float64, cfg Config) {
	t.Helper()
	require.NotEmpty(t, plan.Chunks)
	n := len(plan.Chunks)

	assert.Equal(t, 0.0, plan.Chunks[0].Start, "invariant 1: chunks[0].start = 0")
	assert.InDelta(t, duration, plan.Chunks[n-1].End, 1e-9, "invariant 2: chunks[-1].end = duration")

	for i, c := range plan.Chunks {
		assert.Greater(t, c.End, c.Start, "chunk %d must have positive duration", i)
		assert.LessOrEqual(t, c.End-c.Start, cfg.MaxChunkDuration+1e-9, "invariant 3: chunk %d exceeds max duration", i)
		assert.Equal(t, i > 0, c.HasOverlapStart, "invariant 5 (start) chunk %d", i)
		assert.Equal(t, i < n-1, c.HasOverlapEnd, "invariant 5 (end) chunk %d", i)
	}
	for i := 0; i < n-1; i++ {
		assert.InDelta(t, plan.Chunks[i].End-cfg.OverlapDuration, plan.Chunks[i+1].Start, 1e-9,
			"invariant 4: chunks[%d+1].start = chunks[%d].end - overlap", i, i)
	}
}

func TestPlan_ShortAudioSingleChunkNoOverlap(t *testing.T) {
	cfg := defaultConfig()
	plan := Plan(nil, 30, cfg)
	require.Len(t, plan.Chunks, 1)
	c := plan.Chunks[0]
	assert.Equal(t, 0.0, c.Start)
	assert.Equal(t, 30.0, c.End)
	assert.False(t, c.HasOverlapStart)
	assert.False(t, c.HasOverlapEnd)
}

func TestPlan_EmptyVADSingleChunkSpansFullAudio(t *testing.T) {
	cfg := defaultConfig()
	plan := Plan([]model.SpeechInterval{}, 3600, cfg)
	require.Len(t, plan.Chunks, 1)
	assert.Equal(t, 0.0, plan.Chunks[0].Start)
	assert.Equal(t, 3600.0, plan.Chunks[0].End)
}

func TestPlan_LongMeetingInvariants(t *testing.T) {
	cfg := defaultConfig()
	// 25 minutes = 1500s, with silence gaps near the likely split zones.
	speech := []model.SpeechInterval{
		{Start: 0, End: 595, Duration: 595},
		{Start: 605, End: 1190, Duration: 585}, // gap [595,605) near target 600
		{Start: 1205, End: 1500, Duration: 295}, // gap [1190,1205) near target 1200
	}
	duration := 1500.0
	plan := Plan(speech, duration, cfg)
	assertInvariants(t, plan, duration, cfg)
	assert.Contains(t, []int{3, 4}, len(plan.Chunks))
}

func TestPlan_PrefersSilenceGapNearTarget(t *testing.T) {
	cfg := defaultConfig()
	cfg.TargetChunkDuration = 100
	cfg.MaxChunkDuration = 200
	cfg.SearchHalfWidth = 30
	speech := []model.SpeechInterval{
		{Start: 0, End: 90, Duration: 90},
		{Start: 110, End: 250, Duration: 140}, // gap [90,110) straddles target 100
	}
	plan := Plan(speech, 250, cfg)
	require.GreaterOrEqual(t, len(plan.Chunks), 1)
	// the chosen split should land inside the [90,110) gap, not at a
	// fallback boundary.
	assert.GreaterOrEqual(t, plan.Chunks[0].End, 90.0)
	assert.LessOrEqual(t, plan.Chunks[0].End, 110.0)
}

func TestPlan_NoGapFallsBackToTargetOrMax(t *testing.T) {
	cfg := defaultConfig()
	cfg.TargetChunkDuration = 100
	cfg.MaxChunkDuration = 150
	cfg.SearchHalfWidth = 10
	// continuous speech through the whole window, no silence gap at all.
	speech := []model.SpeechInterval{{Start: 0, End: 300, Duration: 300}}
	plan := Plan(speech, 300, cfg)
	assertInvariants(t, plan, 300, cfg)
	assert.InDelta(t, 100.0, plan.Chunks[0].End, 1e-9)
}

func TestPlan_SpeechIntervalsRebasedToChunkLocalTime(t *testing.T) {
	cfg := defaultConfig()
	cfg.TargetChunkDuration = 100
	cfg.MaxChunkDuration = 100
	speech := []model.SpeechInterval{{Start: 10, End: 20, Duration: 10}}
	plan := Plan(speech, 100, cfg)
	require.Len(t, plan.Chunks, 1)
	require.Len(t, plan.Chunks[0].SpeechIntervals, 1)
	assert.Equal(t, 10.0, plan.Chunks[0].SpeechIntervals[0].Start)
	assert.Equal(t, 20.0, plan.Chunks[0].SpeechIntervals[0].End)
}
