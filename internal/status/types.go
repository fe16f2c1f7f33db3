package status

import "time"

// Stage is the externally visible state of a job's pipeline.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageRepairing  Stage = "repairing"
	StageReducing   Stage = "reducing"
	StageOptimizing Stage = "optimizing"
	StageFinalizing Stage = "finalizing"
	StageSucceeded  Stage = "succeeded"
	StageFailed     Stage = "failed"
)

// Step returns the 1-based position of an active stage (0 when idle or
// terminal), matching the numeric "current_step" field of the status API.
func (s Stage) Step() int {
	switch s {
	case StageRepairing:
		return 1
	case StageReducing:
		return 2
	case StageOptimizing:
		return 3
	case StageFinalizing:
		return 4
	default:
		return 0
	}
}

// Terminal reports whether s ends a job.
func (s Stage) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// Outcome kinds recorded in history entries.
const (
	KindSucceeded        = "succeeded"
	KindInvalidInput     = "invalid_input"
	KindStageExecution   = "stage_execution"
	KindArtifactMissing  = "artifact_missing"
	KindDurationMismatch = "duration_mismatch"
	KindUnexpected       = "unexpected"
)

// HistoryEntry is the immutable record of one finished job.
type HistoryEntry struct {
	Name     string    `json:"name"`
	Message  string    `json:"status"`
	Kind     string    `json:"kind"`
	Finished time.Time `json:"finished"`
}

// JobStatus is the live state of one in-flight job.
type JobStatus struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Stage       Stage     `json:"stage"`
	Progress    int64     `json:"progress"`
	TotalFrames int64     `json:"total_frames"`
	LogLine     string    `json:"log_line"`
	Started     time.Time `json:"started"`
	Updated     time.Time `json:"updated"`
}

// Snapshot is a read-only, point-in-time copy of the sink.
//
// The top-level current-job fields always come from a single job record:
// the one that wrote most recently. Jobs lists every in-flight job.
type Snapshot struct {
	CurrentFile string         `json:"current_file"`
	CurrentPath string         `json:"current_file_path"`
	Stage       Stage          `json:"stage"`
	Step        int            `json:"current_step"`
	Progress    int64          `json:"progress"`
	TotalFrames int64          `json:"total_frames"`
	LogLine     string         `json:"log_line"`
	History     []HistoryEntry `json:"history"`
	Jobs        []JobStatus    `json:"jobs"`
}

// Idle reports whether no job is in flight.
func (s Snapshot) Idle() bool {
	return len(s.Jobs) == 0
}
