package merger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keweikao/sales-transcribe/internal/model"
)

func TestMerge_OverlapDedupBoundary(t *testing.T) {
	// two adjacent chunks sharing a 2s overlap; chunk 1's segment at
	// start=overlap/2 must be dropped, one at start=overlap+epsilon kept
	// (spec section 8 boundary behavior).
	overlap := 2.0
	results := []model.ChunkResult{
		{
			ChunkID: 0, Status: model.ChunkOK, ChunkStart: 0, ChunkEnd: 100,
			Segments: []model.TranscriptSegment{{Start: 90, End: 100, Text: "tail of chunk zero", Confidence: 1}},
		},
		{
			ChunkID: 1, Status: model.ChunkOK, ChunkStart: 98, ChunkEnd: 200,
			Segments: []model.TranscriptSegment{
				{Start: 98 + overlap/2, End: 99.5, Text: "dropped", Confidence: 1},
				{Start: 98 + overlap + 0.001, End: 105, Text: "kept", Confidence: 1},
			},
		},
	}

	final := Merge(results, overlap)
	var texts []string
	for _, s := range final.Segments {
		texts = append(texts, s.Text)
	}
	assert.Equal(t, []string{"tail of chunk zero", "kept"}, texts)
	assert.Equal(t, 2, final.ChunksProcessed)
	assert.Equal(t, 0, final.ChunksFailed)
}

func TestMerge_FailedChunkSkippedWithoutSubstitution(t *testing.T) {
	results := []model.ChunkResult{
		{ChunkID: 0, Status: model.ChunkOK, ChunkStart: 0, ChunkEnd: 10, Segments: []model.TranscriptSegment{{Start: 0, End: 5, Text: "a", Confidence: 1}}},
		{ChunkID: 1, Status: model.ChunkFailed, ChunkStart: 10, ChunkEnd: 20, Error: "asr crashed"},
		{ChunkID: 2, Status: model.ChunkOK, ChunkStart: 20, ChunkEnd: 30, Segments: []model.TranscriptSegment{{Start: 20, End: 25, Text: "c", Confidence: 1}}},
	}
	final := Merge(results, 0)
	require.Len(t, final.Segments, 2)
	assert.Equal(t, 1, final.ChunksFailed)
	assert.Equal(t, 2, final.ChunksProcessed)
}

func TestMerge_FailedNeighborDoesNotTriggerDedupOnNextSurvivor(t *testing.T) {
	// chunk0 [0,100) OK, chunk1 [98,200) FAILED, chunk2 [198,300) OK,
	// overlap=2. chunk2's true chunk-plan neighbor (chunk1) failed, so
	// none of chunk2's segments should be dropped even though chunk0 (the
	// last *successful* chunk) ends near chunk2's start.
	results := []model.ChunkResult{
		{ChunkID: 0, Status: model.ChunkOK, ChunkStart: 0, ChunkEnd: 100,
			Segments: []model.TranscriptSegment{{Start: 90, End: 100, Text: "chunk0 tail", Confidence: 1}}},
		{ChunkID: 1, Status: model.ChunkFailed, ChunkStart: 98, ChunkEnd: 200, Error: "asr crashed"},
		{ChunkID: 2, Status: model.ChunkOK, ChunkStart: 198, ChunkEnd: 300,
			Segments: []model.TranscriptSegment{
				{Start: 198, End: 199, Text: "chunk2 opening", Confidence: 1},
				{Start: 199, End: 205, Text: "chunk2 continues", Confidence: 1},
			}},
	}

	final := Merge(results, 2)
	var texts []string
	for _, s := range final.Segments {
		texts = append(texts, s.Text)
	}
	assert.Equal(t, []string{"chunk0 tail", "chunk2 opening", "chunk2 continues"}, texts)
	assert.Equal(t, 2, final.ChunksProcessed)
	assert.Equal(t, 1, final.ChunksFailed)
}

func TestMerge_EmptyResultsZeroAggregates(t *testing.T) {
	final := Merge(nil, 2)
	assert.Equal(t, 0, final.TotalSegments)
	assert.Equal(t, 0.0, final.AverageConfidence)
	assert.Equal(t, "", final.FullText)
	assert.Equal(t, 0.0, final.TotalDuration)
}

func TestMerge_FullTextJoinedBySingleSpace(t *testing.T) {
	results := []model.ChunkResult{
		{ChunkID: 0, Status: model.ChunkOK, Segments: []model.TranscriptSegment{
			{Start: 0, End: 1, Text: "你好", Confidence: 1},
			{Start: 1, End: 2, Text: "世界", Confidence: 1},
		}},
	}
	final := Merge(results, 0)
	assert.Equal(t, "你好 世界", final.FullText)
}

func TestSRTAndVTTTimestampFormatting(t *testing.T) {
	final := model.FinalTranscript{Segments: []model.TranscriptSegment{
		{Start: 3661.234, End: 3662.5, Text: "hello"},
	}}
	srt := SRT(final)
	assert.Contains(t, srt, "01:01:01,234 --> 01:01:02,500")

	vtt := VTT(final)
	assert.Contains(t, vtt, "WEBVTT\n\n")
	assert.Contains(t, vtt, "01:01:01.234 --> 01:01:02.500")
}

func TestJSONRoundTrip(t *testing.T) {
	final := model.FinalTranscript{
		Segments:      []model.TranscriptSegment{{Start: 0, End: 1, Text: "a", Confidence: 0.9}},
		TotalSegments: 1,
		FullText:      "a",
	}
	data, err := JSON(final)
	require.NoError(t, err)

	var roundTripped model.FinalTranscript
	require.NoError(t, json.Unmarshal(data, &roundTripped))
	assert.Equal(t, final.Segments, roundTripped.Segments)
	assert.Equal(t, final.FullText, roundTripped.FullText)
}
