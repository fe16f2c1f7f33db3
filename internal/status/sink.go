// Package status is the single owner of all job-visible mutable state:
// which jobs are in flight, their stage and progress, the latest log line,
// and the history of finished jobs. Every operation is atomic with respect
// to every other, and [Sink.Snapshot] returns a deep copy that was valid at
// one instant.
package status

import (
	"sort"
	"sync"
	"time"
)

// record is a JobStatus plus the write sequence used to pick the current job.
type record struct {
	JobStatus
	seq uint64
}

// Sink is a mutex-guarded status store shared by every pipeline. The zero
// value is not usable; call [NewSink].
type Sink struct {
	mu      sync.RWMutex
	jobs    map[string]*record
	current string // id of the job that wrote most recently
	seq     uint64
	logLine string
	history []HistoryEntry
	now     func() time.Time
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{
		jobs: make(map[string]*record),
		now:  time.Now,
	}
}

// StartJob registers a job as in flight and makes it the current job.
// Starting an id twice resets its record.
func (s *Sink) StartJob(id, name, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.seq++
	s.jobs[id] = &record{
		JobStatus: JobStatus{
			ID:      id,
			Name:    name,
			Path:    path,
			Stage:   StageIdle,
			Started: now,
			Updated: now,
		},
		seq: s.seq,
	}
	s.current = id
}

// SetStage moves a job to stage.
func (s *Sink) SetStage(id string, stage Stage) {
	s.update(id, func(r *record) { r.Stage = stage })
}

// SetProgress sets the job's frame counter. A total of 0 keeps the
// previous total estimate.
func (s *Sink) SetProgress(id string, value, total int64) {
	s.update(id, func(r *record) {
		r.Progress = value
		if total > 0 {
			r.TotalFrames = total
		}
	})
}

// ResetProgress zeroes the job's counter and total.
func (s *Sink) ResetProgress(id string) {
	s.update(id, func(r *record) {
		r.Progress = 0
		r.TotalFrames = 0
	})
}

// SetLogLine records the latest human-readable line. An empty id sets the
// sink-wide line shown while no job is current (dispatcher messages).
func (s *Sink) SetLogLine(id, line string) {
	if id == "" {
		s.mu.Lock()
		s.logLine = line
		s.mu.Unlock()
		return
	}
	s.update(id, func(r *record) { r.LogLine = line })
}

// FinishJob removes a job from the in-flight set. If it was current, the
// most recently updated remaining job becomes current, and its last log
// line stays visible as the sink-wide line.
func (s *Sink) FinishJob(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.jobs[id]
	if !ok {
		return
	}
	delete(s.jobs, id)
	if s.current != id {
		return
	}
	if r.LogLine != "" {
		s.logLine = r.LogLine
	}
	s.current = ""
	var best uint64
	for jid, other := range s.jobs {
		if other.seq > best {
			best = other.seq
			s.current = jid
		}
	}
}

// AppendHistory records the outcome of one finished job.
func (s *Sink) AppendHistory(name, message, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, HistoryEntry{
		Name:     name,
		Message:  message,
		Kind:     kind,
		Finished: s.now(),
	})
}

// ClearHistory drops every history entry.
func (s *Sink) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Snapshot returns a consistent copy of the sink.
func (s *Sink) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Stage:   StageIdle,
		LogLine: s.logLine,
		History: make([]HistoryEntry, len(s.history)),
		Jobs:    make([]JobStatus, 0, len(s.jobs)),
	}
	copy(snap.History, s.history)

	if r, ok := s.jobs[s.current]; ok {
		snap.CurrentFile = r.Name
		snap.CurrentPath = r.Path
		snap.Stage = r.Stage
		snap.Step = r.Stage.Step()
		snap.Progress = r.Progress
		snap.TotalFrames = r.TotalFrames
		if r.LogLine != "" {
			snap.LogLine = r.LogLine
		}
	}

	for _, r := range s.jobs {
		snap.Jobs = append(snap.Jobs, r.JobStatus)
	}
	sort.Slice(snap.Jobs, func(i, j int) bool {
		if !snap.Jobs[i].Started.Equal(snap.Jobs[j].Started) {
			return snap.Jobs[i].Started.Before(snap.Jobs[j].Started)
		}
		return snap.Jobs[i].ID < snap.Jobs[j].ID
	})
	return snap
}

// update applies fn to a known job and makes it current. Updates for
// unknown (already finished) jobs are dropped.
func (s *Sink) update(id string, fn func(*record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.jobs[id]
	if !ok {
		return
	}
	fn(r)
	s.seq++
	r.seq = s.seq
	r.Updated = s.now()
	s.current = id
}
