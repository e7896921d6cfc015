package contracts

import "time"

// Index event types
const (
	EventCompositionAppended = "composition.appended"
	EventPerformanceAppended = "performance.appended"
	EventChangesAppended     = "changes.appended"
)

// IndexEvent notifies readers that a new version set was written
type IndexEvent struct {
	Type      string    `json:"type"`
	Range     DateRange `json:"range"`
	Rows      int       `json:"rows"`
	RunID     string    `json:"run_id"`
	WriteTime time.Time `json:"write_time"`
}
