package models

import (
	"math"
	"time"
)

// Role identifies who authored a transcript message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry. Content and Timestamp never change after construction.
type Message struct {
	ID        int               `json:"id"` // position in the transcript, monotonic per session
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Sources   []SourceReference `json:"sources,omitempty"` // only on retrieval-backed assistant replies
}

// SourceReference is a document the backend used to ground a reply
type SourceReference struct {
	Title string  `json:"title"`
	URL   string  `json:"url,omitempty"`
	Score float64 `json:"score"` // similarity in [0,1]
}

// Percent returns the score as a rounded percentage
func (s SourceReference) Percent() int {
	return int(math.Round(s.Score * 100))
}
