package pipeline

import "github.com/wonny/eqindex/internal/contracts"

// CompositionEvent describes an appended composition version set; nil when nothing was written
func CompositionEvent(s *contracts.CompositionSnapshot) *contracts.IndexEvent {
	if s == nil || s.RunID == "" {
		return nil
	}
	return &contracts.IndexEvent{
		Type:      contracts.EventCompositionAppended,
		Range:     contracts.SingleDay(s.Date),
		Rows:      s.Len(),
		RunID:     s.RunID,
		WriteTime: s.WriteTime,
	}
}

// PerformanceEvent describes an appended performance version set
func PerformanceEvent(s *contracts.PerformanceSeries) *contracts.IndexEvent {
	if s == nil || s.RunID == "" {
		return nil
	}
	return &contracts.IndexEvent{
		Type:      contracts.EventPerformanceAppended,
		Range:     s.Range,
		Rows:      s.Len(),
		RunID:     s.RunID,
		WriteTime: s.WriteTime,
	}
}

// ChangesEvent describes appended change records
func ChangesEvent(s *contracts.ChangeSeries) *contracts.IndexEvent {
	if s == nil || s.RunID == "" || s.Appended == 0 {
		return nil
	}
	return &contracts.IndexEvent{
		Type:      contracts.EventChangesAppended,
		Range:     s.Range,
		Rows:      s.Appended,
		RunID:     s.RunID,
		WriteTime: s.WriteTime,
	}
}
