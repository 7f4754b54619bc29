// Package merger implements the Transcript Merger: assembling chunk
// results in global order, deduplicating overlap zones, and producing the
// final aggregates and serialized output formats.
package merger

import (
	"sort"
	"strings"

	"github.com/keweikao/sales-transcribe/internal/model"
)

// Merge assembles a chunk-ordered list of ChunkResults into a single
// FinalTranscript (spec section 4.4). Chunks must already be sorted by
// ChunkID; the Parallel Transcriber guarantees this.
func Merge(results []model.ChunkResult, overlapDuration float64) model.FinalTranscript {
	sorted := append([]model.ChunkResult(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkID < sorted[j].ChunkID })

	var segments []model.TranscriptSegment
	chunksProcessed, chunksFailed := 0, 0

	for i := range sorted {
		r := &sorted[i]
		if r.Status != model.ChunkOK {
			chunksFailed++
			continue
		}
		chunksProcessed++

		kept := r.Segments
		if overlapDuration > 0 && i > 0 {
			prev := &sorted[i-1]
			// The dedup rule only applies between true chunk-plan
			// neighbors (i, i+1): a failed or non-adjacent predecessor
			// leaves no overlap-owned region for r to defer to, so its
			// segments are kept in full (spec section 4.4).
			if prev.Status == model.ChunkOK && prev.ChunkID == r.ChunkID-1 {
				cutoff := r.ChunkStart + overlapDuration
				kept = dropBeforeCutoff(r.Segments, cutoff)
			}
		}
		segments = append(segments, kept...)
	}

	return model.FinalTranscript{
		Segments:          segments,
		FullText:          joinText(segments),
		TotalSegments:     len(segments),
		TotalDuration:     totalDuration(segments),
		AverageConfidence: averageConfidence(segments),
		ChunksProcessed:   chunksProcessed,
		ChunksFailed:      chunksFailed,
	}
}

// dropBeforeCutoff drops every segment whose Start is before cutoff —
// the overlap-deduplication rule in spec section 4.4: the tail of the
// preceding chunk already covers that region with a longer acoustic
// context, so its transcript wins. Deterministic; no fuzzy matching.
func dropBeforeCutoff(segments []model.TranscriptSegment, cutoff float64) []model.TranscriptSegment {
	kept := make([]model.TranscriptSegment, 0, len(segments))
	for _, s := range segments {
		if s.Start < cutoff {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// joinText concatenates segment text with a single space, exactly as
// spec section 4.4 specifies. Section 9 flags this as an imperfect but
// deliberate choice for Chinese text; it is kept as specified rather than
// silently "fixed".
func joinText(segments []model.TranscriptSegment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

func totalDuration(segments []model.TranscriptSegment) float64 {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].End
}

func averageConfidence(segments []model.TranscriptSegment) float64 {
	if len(segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range segments {
		sum += s.Confidence
	}
	return sum / float64(len(segments))
}
