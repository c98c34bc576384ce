package task

import "time"

// Status represents the current state of a caption task
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is permitted
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a status change is legal. Transitions are
// monotonic: pending->processing, processing->{completed,failed}, and
// pending->failed when pre-flight validation rejects the reference.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Caption is one timed segment of the result transcript
type Caption struct {
	Sequence   int     `json:"id"`
	Text       string  `json:"text"`
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	Confidence float64 `json:"confidence"`
}

// Task represents one caption generation request and its tracked outcome
type Task struct {
	ID        string    `json:"id"`
	VideoURL  string    `json:"video_url"`
	Language  string    `json:"language"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Title     string    `json:"title,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
	Captions  []Caption `json:"captions,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
