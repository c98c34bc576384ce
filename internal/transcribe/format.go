package transcribe

import (
	"math"
	"strings"

	"github.com/caption-service/backend/internal/task"
)

// FormatCaptions maps a segmented transcript onto caption records: 1-based
// sequence by position, trimmed text, confidence clamped to [-1, 1]. An
// empty segment list yields an empty caption list, not an error. The mapping
// is idempotent: formatting already-formatted output changes nothing.
func FormatCaptions(segments []Segment) []task.Caption {
	captions := make([]task.Caption, 0, len(segments))
	for i, s := range segments {
		captions = append(captions, task.Caption{
			Sequence:   i + 1,
			Text:       strings.TrimSpace(s.Text),
			StartTime:  s.Start,
			EndTime:    s.End,
			Confidence: ClampConfidence(s.Confidence),
		})
	}
	return captions
}

// ClampConfidence bounds a confidence score to [-1, 1]; non-numeric values
// default to 0
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
