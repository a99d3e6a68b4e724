package subtitle

import (
	"fmt"
	"strings"

	"vaani/internal/model"
)

// RenderSRT formats timed segments as SubRip text. Cue numbers start at 1;
// segments with empty text are skipped since players reject empty cues.
func RenderSRT(segments []model.Segment) string {
	var b strings.Builder
	cue := 0
	for _, seg := range segments {
		if seg.Text == "" {
			continue
		}
		cue++
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", cue, formatTimestamp(seg.Start), formatTimestamp(seg.End), seg.Text)
	}
	return b.String()
}

// formatTimestamp renders seconds as the SubRip HH:MM:SS,mmm form.
func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3600000
	millis -= h * 3600000
	m := millis / 60000
	millis -= m * 60000
	s := millis / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
