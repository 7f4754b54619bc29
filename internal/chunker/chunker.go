// Package chunker implements the Audio Chunker: partitioning the input
// timeline into processable chunks at natural silences, with small
// overlaps between adjacent chunks. It operates purely on the VAD
// Processor's output and the audio's total duration, so it has no ASR or
// VAD dependency of its own and is fully deterministic.
package chunker

import "github.com/keweikao/sales-transcribe/internal/model"

// Config holds the Audio Chunker's tunable parameters (spec section 4.2).
type Config struct {
	TargetChunkDuration float64
	MaxChunkDuration    float64
	OverlapDuration     float64
	// SearchHalfWidth is the half-width W of the split-point search
	// window around the target split; spec section 4.2 suggests 30s.
	SearchHalfWidth float64
	// GapScoreWeight is k in the candidate score
	// gapDuration*k - |candidate-target|.
	GapScoreWeight float64
}

// gap is a silence interval between two consecutive SpeechIntervals.
type gap struct{ start, end float64 }

// Plan builds a ChunkPlan covering [0, duration) from the VAD-detected
// speech intervals (assumed sorted, non-overlapping, strictly increasing
// in Start, per the VAD Processor's contract).
func Plan(speech []model.SpeechInterval, duration float64, cfg Config) model.ChunkPlan {
	if duration <= 0 {
		return model.ChunkPlan{}
	}
	// With no speech detected, the whole audio is a single chunk,
	// regardless of MaxChunkDuration.
	if len(speech) == 0 {
		return buildChunks([]float64{0}, []float64{duration}, nil)
	}

	gaps := silenceGaps(speech, duration)

	var starts, ends []float64
	current := 0.0
	for current < duration {
		maxEnd := current + cfg.MaxChunkDuration
		if maxEnd > duration {
			maxEnd = duration
		}
		target := current + cfg.TargetChunkDuration

		var split float64
		if target >= duration {
			split = duration
		} else {
			split = chooseSplit(gaps, current, target, maxEnd, cfg)
		}
		if split > duration {
			split = duration
		}
		if split <= current {
			split = maxEnd
		}

		starts = append(starts, current)
		ends = append(ends, split)

		if split >= duration {
			break
		}
		if split-cfg.OverlapDuration > current {
			current = split - cfg.OverlapDuration
		} else {
			current = split
		}
	}

	return buildChunks(starts, ends, speech)
}

// silenceGaps returns the silence intervals between consecutive speech
// intervals, used as candidate split zones.
func silenceGaps(speech []model.SpeechInterval, duration float64) []gap {
	if len(speech) == 0 {
		return []gap{{start: 0, end: duration}}
	}
	var gaps []gap
	if speech[0].Start > 0 {
		gaps = append(gaps, gap{start: 0, end: speech[0].Start})
	}
	for i := 0; i < len(speech)-1; i++ {
		if speech[i+1].Start > speech[i].End {
			gaps = append(gaps, gap{start: speech[i].End, end: speech[i+1].Start})
		}
	}
	if last := speech[len(speech)-1]; last.End < duration {
		gaps = append(gaps, gap{start: last.End, end: duration})
	}
	return gaps
}

// chooseSplit implements spec section 4.2's search-window scoring:
// among candidate split points inside [max(current, target-W),
// min(maxEnd, target+W)], prefer those inside a silence gap, scored by
// gapDuration*k - |candidate-target|; fall back to min(target, maxEnd)
// when no gap intersects the window.
func chooseSplit(gaps []gap, current, target, maxEnd float64, cfg Config) float64 {
	lo := target - cfg.SearchHalfWidth
	if lo < current {
		lo = current
	}
	hi := target + cfg.SearchHalfWidth
	if hi > maxEnd {
		hi = maxEnd
	}
	if hi <= lo {
		if target < maxEnd {
			return target
		}
		return maxEnd
	}

	bestScore := negInf
	bestCandidate := 0.0
	found := false

	for _, g := range gaps {
		ws, we := g.start, g.end
		if ws < lo {
			ws = lo
		}
		if we > hi {
			we = hi
		}
		if we <= ws {
			continue
		}
		gapDuration := g.end - g.start
		// Evaluate the candidate within this window-intersected gap
		// closest to target; since the score term -|candidate-target|
		// is maximized at the in-window point nearest target, clamp
		// target into [ws, we].
		candidate := target
		if candidate < ws {
			candidate = ws
		}
		if candidate > we {
			candidate = we
		}
		score := gapDuration*cfg.GapScoreWeight - absf(candidate-target)
		if score > bestScore {
			bestScore = score
			bestCandidate = candidate
			found = true
		}
	}

	if !found {
		if target < maxEnd {
			return target
		}
		return maxEnd
	}
	return bestCandidate
}

const negInf = -1e18

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// buildChunks assembles Chunk entries from the chosen chunk boundaries,
// rebasing each chunk's speech intervals to chunk-local time and setting
// the overlap flags.
func buildChunks(starts, ends []float64, speech []model.SpeechInterval) model.ChunkPlan {
	if len(ends) == 0 {
		return model.ChunkPlan{}
	}

	chunks := make([]model.Chunk, 0, len(ends))
	for i := range ends {
		chunks = append(chunks, model.Chunk{
			ChunkID:         i,
			Start:           starts[i],
			End:             ends[i],
			SpeechIntervals: rebase(speech, starts[i], ends[i]),
			HasOverlapStart: i > 0,
			HasOverlapEnd:   i < len(ends)-1,
		})
	}
	return model.ChunkPlan{Chunks: chunks}
}

// rebase returns the SpeechIntervals falling inside [start, end),
// shifted so their times are relative to start.
func rebase(speech []model.SpeechInterval, start, end float64) []model.SpeechInterval {
	var out []model.SpeechInterval
	for _, s := range speech {
		if s.End <= start || s.Start >= end {
			continue
		}
		lo, hi := s.Start, s.End
		if lo < start {
			lo = start
		}
		if hi > end {
			hi = end
		}
		out = append(out, model.SpeechInterval{
			Start:    lo - start,
			End:      hi - start,
			Duration: hi - lo,
		})
	}
	return out
}
