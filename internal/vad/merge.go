package vad

import "github.com/keweikao/sales-transcribe/internal/model"

// mergeFrames turns a per-frame speech-probability stream into the ordered,
// non-overlapping SpeechIntervals required by spec section 4.1:
//
//	(a) no segment shorter than MinSpeechDurationMs survives
//	(b) silence shorter than MinSilenceDurationMs between two speech runs
//	    causes them to be merged
//	(c) padding is applied after merging and clamped to the audio boundary
//
// frameDurationSec is the fixed duration each probs[i] covers;
// totalDurationSec bounds the padding clamp.
func mergeFrames(probs []float32, frameDurationSec, totalDurationSec float64, cfg Config) []model.SpeechInterval {
	threshold := float32(cfg.Threshold)

	// Step 1: raw speech runs directly from the thresholded frame stream.
	type run struct{ start, end float64 }
	var runs []run
	inRun := false
	var runStart float64

	for i, p := range probs {
		t := float64(i) * frameDurationSec
		if p >= threshold {
			if !inRun {
				inRun = true
				runStart = t
			}
		} else if inRun {
			runs = append(runs, run{start: runStart, end: t})
			inRun = false
		}
	}
	if inRun {
		runs = append(runs, run{start: runStart, end: totalDurationSec})
	}
	if len(runs) == 0 {
		return nil
	}

	// Step 2: merge runs separated by a silence gap shorter than
	// MinSilenceDurationMs.
	minSilence := float64(cfg.MinSilenceDurationMs) / 1000.0
	merged := []run{runs[0]}
	for _, r := range runs[1:] {
		last := &merged[len(merged)-1]
		if r.start-last.end < minSilence {
			last.end = r.end
		} else {
			merged = append(merged, r)
		}
	}

	// Step 3: drop speech islands shorter than MinSpeechDurationMs.
	minSpeech := float64(cfg.MinSpeechDurationMs) / 1000.0
	filtered := merged[:0]
	for _, r := range merged {
		if r.end-r.start >= minSpeech {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return nil
	}

	// Step 4: pad symmetrically, clamped to the audio boundary, then
	// re-merge any intervals padding brought into contact or overlap so
	// the output stays non-overlapping and strictly increasing.
	pad := float64(cfg.SpeechPadMs) / 1000.0
	padded := make([]run, len(filtered))
	for i, r := range filtered {
		start := r.start - pad
		if start < 0 {
			start = 0
		}
		end := r.end + pad
		if end > totalDurationSec {
			end = totalDurationSec
		}
		padded[i] = run{start: start, end: end}
	}

	final := []run{padded[0]}
	for _, r := range padded[1:] {
		last := &final[len(final)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
		} else {
			final = append(final, r)
		}
	}

	intervals := make([]model.SpeechInterval, 0, len(final))
	for _, r := range final {
		if r.end <= r.start {
			continue
		}
		intervals = append(intervals, model.SpeechInterval{
			Start:    r.start,
			End:      r.end,
			Duration: r.end - r.start,
		})
	}
	return intervals
}
