package merger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keweikao/sales-transcribe/internal/model"
)

// Text renders the plain-text transcript body (spec section 6: "txt: UTF-8,
// transcript body only").
func Text(t model.FinalTranscript) string {
	return t.FullText
}

// JSON renders the structured JSON artifact (spec section 6's field list).
// It is a pure function of t; marshalling the same FinalTranscript twice
// yields byte-identical output.
func JSON(t model.FinalTranscript) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// SRT renders 1-indexed SubRip cues with "HH:MM:SS,mmm" timestamps, a
// blank line between cues, and a trailing newline (spec section 6).
func SRT(t model.FinalTranscript) string {
	var b strings.Builder
	for i, s := range t.Segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatSRTTimestamp(s.Start), formatSRTTimestamp(s.End))
		fmt.Fprintf(&b, "%s\n\n", s.Text)
	}
	return b.String()
}

// VTT renders a WebVTT document: the "WEBVTT\n\n" header followed by cues
// with a "." decimal separator (spec section 6).
func VTT(t model.FinalTranscript) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, s := range t.Segments {
		fmt.Fprintf(&b, "%s --> %s\n", formatVTTTimestamp(s.Start), formatVTTTimestamp(s.End))
		fmt.Fprintf(&b, "%s\n\n", s.Text)
	}
	return b.String()
}

// formatSRTTimestamp renders seconds as HH:MM:SS,mmm.
func formatSRTTimestamp(seconds float64) string {
	h, m, s, ms := splitClock(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// formatVTTTimestamp renders seconds as HH:MM:SS.mmm.
func formatVTTTimestamp(seconds float64) string {
	h, m, s, ms := splitClock(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func splitClock(seconds float64) (h, m, s, ms int) {
	if seconds < 0 {
		seconds = 0
	}
	totalMs := int64(seconds*1000 + 0.5)
	ms = int(totalMs % 1000)
	totalS := totalMs / 1000
	s = int(totalS % 60)
	totalM := totalS / 60
	m = int(totalM % 60)
	h = int(totalM / 60)
	return
}
