package transcribe

import "context"

// Request is the input for a transcription
type Request struct {
	AudioPath string // absolute path to a mono PCM WAV file
	Language  string // "en", "ko", "ja", etc.
}

// Segment is one timed piece of a transcript. Confidence is a
// log-probability-derived score in [-1, 1], not a probability.
type Segment struct {
	Start      float64
	End        float64
	Text       string
	Confidence float64
}

// Transcript is the common output shape of every engine
type Transcript struct {
	Language string
	Text     string
	Segments []Segment
}

// Transcriber is the common interface for all transcription engines
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (*Transcript, error)
	// Name returns the engine name
	Name() string
}
