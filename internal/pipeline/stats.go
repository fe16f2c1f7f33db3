package pipeline

import "github.com/backmassage/vidopt/internal/status"

// RunStats tracks aggregate counters and byte totals across every job a
// dispatcher has run.
type RunStats struct {
	Total            int   `json:"total"`   // Jobs enqueued.
	Running          int   `json:"running"` // Enqueued and not yet finished.
	Encoded          int   `json:"encoded"`
	Skipped          int   `json:"skipped"`
	Failed           int   `json:"failed"`
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
}

// SpaceSaved returns the aggregate byte difference between inputs and outputs.
// Positive means outputs are smaller; negative means they grew.
func (s *RunStats) SpaceSaved() int64 {
	return s.TotalInputBytes - s.TotalOutputBytes
}

// record folds one finished job into the totals.
func (s *RunStats) record(o Outcome) {
	s.Running--
	switch {
	case o.Skipped:
		s.Skipped++
	case o.Err != nil || o.Stage != status.StageSucceeded:
		s.Failed++
	default:
		s.Encoded++
		s.TotalInputBytes += o.InputBytes
		s.TotalOutputBytes += o.OutputBytes
	}
}
