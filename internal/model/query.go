package model

import "time"

// Query status constants.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Query is one journaled engine query. The journal keeps dispatch metadata
// only; reply bodies are not retained, just their size.
type Query struct {
	ID         string     `json:"id"`
	Service    string     `json:"service"`
	Status     string     `json:"status"`
	Waypoints  int        `json:"waypoints"`
	Error      string     `json:"error,omitempty"`
	ReplyBytes *int       `json:"reply_bytes,omitempty"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
