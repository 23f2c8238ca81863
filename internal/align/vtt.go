package align

import (
	"fmt"
	"math"
	"strings"

	"speaker-transcriber/internal/domain"
)

// FormatVTT renders aligned segments as WebVTT cues, tagging the voice when known.
func FormatVTT(segments []domain.AlignedSegment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n", vttTimestamp(seg.Start), vttTimestamp(seg.End))
		text := strings.TrimSpace(seg.Text)
		if seg.Speaker != "" {
			text = fmt.Sprintf("<v %s>%s", seg.Speaker, text)
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// vttTimestamp formats seconds as HH:MM:SS.mmm.
func vttTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	ms := int64(math.Round(sec * 1000))
	return fmt.Sprintf("%02d:%02d:%02d.%03d",
		ms/3_600_000,
		(ms/60_000)%60,
		(ms/1000)%60,
		ms%1000,
	)
}
