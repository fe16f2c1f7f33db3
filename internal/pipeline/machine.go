package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/display"
	"github.com/backmassage/vidopt/internal/ffmpeg"
	"github.com/backmassage/vidopt/internal/logging"
	"github.com/backmassage/vidopt/internal/naming"
	"github.com/backmassage/vidopt/internal/planner"
	"github.com/backmassage/vidopt/internal/probe"
	"github.com/backmassage/vidopt/internal/progress"
	"github.com/backmassage/vidopt/internal/status"
)

// Prober measures media files. *probe.Prober satisfies it.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.ProbeResult, error)
	Duration(ctx context.Context, path string) (float64, error)
}

// StageRunner executes one stage command. *ffmpeg.Runner satisfies it.
type StageRunner interface {
	Run(ctx context.Context, cmd ffmpeg.Command, onEvent func(progress.Event)) (string, error)
}

// Outcome is the result of one [Machine.Process] call.
type Outcome struct {
	JobID       string
	Name        string
	Path        string
	Stage       status.Stage // Terminal stage; idle when skipped.
	Skipped     bool
	Err         error
	InputBytes  int64
	OutputBytes int64
	Elapsed     time.Duration
}

// Machine runs single files through the stage sequence. One Machine is
// shared by every pipeline of a dispatcher; per-job state lives on the
// stack of Process.
type Machine struct {
	cfg      *config.Config
	log      *logging.Logger
	sink     *status.Sink
	prober   Prober
	runner   StageRunner
	resolver *naming.CollisionResolver

	mu     sync.Mutex
	active map[string]struct{} // inputs with a pipeline in flight

	// Filesystem and id hooks, replaced in tests.
	stat   func(string) (os.FileInfo, error)
	remove func(string) error
	newID  func() string
}

// NewMachine wires a Machine. A nil resolver disables stem reservation.
func NewMachine(cfg *config.Config, log *logging.Logger, sink *status.Sink, prober Prober, runner StageRunner, resolver *naming.CollisionResolver) *Machine {
	if log == nil {
		log = logging.Discard()
	}
	return &Machine{
		cfg:      cfg,
		log:      log,
		sink:     sink,
		prober:   prober,
		runner:   runner,
		resolver: resolver,
		active:   make(map[string]struct{}),
		stat:     os.Stat,
		remove:   os.Remove,
		newID:    uuid.NewString,
	}
}

// stageStates maps planner stages to their visible state.
var stageStates = map[planner.Stage]status.Stage{
	planner.StageRepair:   status.StageRepairing,
	planner.StageReduce:   status.StageReducing,
	planner.StageOptimize: status.StageOptimizing,
	planner.StageFinalize: status.StageFinalizing,
}

// isValidTransition enforces the allowed job state machine edges. Stages
// only move forward; every non-terminal state may fail.
func isValidTransition(from, to status.Stage) bool {
	if to == status.StageFailed {
		return !from.Terminal()
	}
	switch from {
	case status.StageIdle:
		return to == status.StageRepairing
	case status.StageRepairing:
		return to == status.StageReducing
	case status.StageReducing:
		return to == status.StageOptimizing
	case status.StageOptimizing:
		return to == status.StageFinalizing || to == status.StageSucceeded
	case status.StageFinalizing:
		return to == status.StageSucceeded
	default:
		return false
	}
}

// job is the private state of one Process call.
type job struct {
	id    string
	name  string
	path  string
	stage status.Stage
	log   *logging.Logger
}

func (m *Machine) transition(j *job, to status.Stage) error {
	if !isValidTransition(j.stage, to) {
		return &UnexpectedError{Op: "transition", Err: fmt.Errorf("invalid transition: %s -> %s", j.stage, to)}
	}
	j.stage = to
	m.sink.SetStage(j.id, to)
	return nil
}

// Process runs one file to completion. It never returns an error: the
// outcome is recorded as exactly one history entry and returned for
// aggregation. Files named like an artifact of an earlier run, and inputs
// another pipeline is already working on, are skipped without a history
// entry.
func (m *Machine) Process(ctx context.Context, path string) (out Outcome) {
	name := filepath.Base(path)
	out = Outcome{Name: name, Path: path, Stage: status.StageIdle}

	if naming.IsArtifact(path) {
		m.log.Debug(m.cfg.Verbose, "Skip (already optimized): %s", name)
		out.Skipped = true
		return out
	}
	if !m.claim(path) {
		m.log.Warn("Skip (already in progress): %s", name)
		out.Skipped = true
		return out
	}
	defer m.unclaim(path)

	j := &job{
		id:    m.newID(),
		name:  name,
		path:  path,
		stage: status.StageIdle,
		log:   m.log.With("job", name),
	}
	out.JobID = j.id
	start := time.Now()
	m.sink.StartJob(j.id, name, path)
	if m.resolver != nil {
		defer m.resolver.Release(path)
	}

	defer func() {
		if r := recover(); r != nil {
			out.Err = &UnexpectedError{Op: "pipeline", Err: fmt.Errorf("panic: %v", r)}
		}
		if out.Err != nil && !j.stage.Terminal() {
			_ = m.transition(j, status.StageFailed)
		}
		out.Stage = j.stage
		out.Elapsed = time.Since(start)

		kind, msg := Classify(out.Err)
		if out.Err != nil {
			j.log.Error("%s", msg)
		} else {
			j.log.Success("Done in %ds", int(out.Elapsed.Seconds()))
		}
		m.sink.AppendHistory(name, msg, kind)
		m.sink.FinishJob(j.id)
	}()

	out.Err = m.run(ctx, j, &out)
	return out
}

// claim reserves path for one pipeline. Two pipelines on the same input
// would write the same artifacts, and the first to succeed would delete the
// input under the other.
func (m *Machine) claim(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.active[path]; busy {
		return false
	}
	m.active[path] = struct{}{}
	return true
}

func (m *Machine) unclaim(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, path)
}

func (m *Machine) run(ctx context.Context, j *job, out *Outcome) error {
	// --- Preflight ---
	pr, err := m.prober.Probe(ctx, j.path)
	if err != nil {
		return &InvalidInputError{Path: j.path, Reason: fmt.Sprintf("cannot probe: %v", err)}
	}
	if !pr.HasVideo() {
		return &InvalidInputError{Path: j.path, Reason: "no video stream"}
	}
	if fi, err := m.stat(j.path); err == nil {
		out.InputBytes = fi.Size()
	}
	j.log.Info("Video: %s | %s | %s", pr.Resolution(),
		display.FormatBitrateLabel(pr.VideoBitRate()/1000), pr.PrimaryVideo.Codec)

	if m.cfg.OutputDir != "" {
		if err := os.MkdirAll(m.cfg.OutputDir, 0o755); err != nil {
			return &UnexpectedError{Op: "create output directory", Err: err}
		}
	}

	art := naming.ArtifactsFor(j.path, m.cfg.OutputDir, m.cfg.OutputContainer, m.resolver)
	plan := planner.BuildPlan(m.cfg, j.path, pr, art)
	if plan.Deinterlace {
		j.log.Info("Interlaced source, applying yadif")
	}
	if plan.Tonemap {
		j.log.Info("HDR source, tonemapping to SDR")
	}

	// --- Stages ---
	for _, spec := range plan.Stages {
		if err := m.transition(j, stageStates[spec.Stage]); err != nil {
			return err
		}
		m.sink.ResetProgress(j.id)
		m.sink.SetProgress(j.id, 0, plan.TotalFrames)

		cmd := ffmpeg.Build(m.cfg, spec)
		j.log.Info("%s -> %s", spec.Stage, filepath.Base(spec.Output))
		last, err := m.runner.Run(ctx, cmd, m.eventHandler(j.id, plan.TotalFrames))
		if err != nil {
			return err
		}
		j.log.Debug(m.cfg.Verbose, "%s finished: %s", spec.Stage, last)

		if err := m.checkArtifact(string(spec.Stage), spec.Output); err != nil {
			return err
		}
	}

	// --- Validation gate ---
	final := plan.Final()
	if err := m.validateDuration(ctx, j.path, final); err != nil {
		return err
	}
	if fi, err := m.stat(final); err == nil {
		out.OutputBytes = fi.Size()
	}

	// --- Cleanup ---
	m.cleanup(j, append([]string{j.path}, art.Intermediates()...))

	return m.transition(j, status.StageSucceeded)
}

// eventHandler forwards runner events to the sink. A completed event pins
// progress to the total.
func (m *Machine) eventHandler(id string, total int64) func(progress.Event) {
	return func(ev progress.Event) {
		switch ev.Kind {
		case progress.KindCompleted:
			m.sink.SetProgress(id, total, 0)
			m.sink.SetLogLine(id, ev.Text)
		case progress.KindSummary:
			if f := ev.Frame(); f >= 0 {
				m.sink.SetProgress(id, f, 0)
			}
			m.sink.SetLogLine(id, ev.Text)
		}
	}
}

func (m *Machine) checkArtifact(stage, path string) error {
	fi, err := m.stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &ArtifactMissingError{Stage: stage, Path: path, Size: -1}
	case err != nil:
		return &UnexpectedError{Op: "stat " + stage + " output", Err: err}
	case fi.Size() == 0:
		return &ArtifactMissingError{Stage: stage, Path: path, Size: 0}
	}
	return nil
}

// validateDuration probes both files independently. The check fails only
// when the drift is strictly greater than the tolerance.
func (m *Machine) validateDuration(ctx context.Context, input, final string) error {
	in, err := m.prober.Duration(ctx, input)
	if err != nil {
		return &UnexpectedError{Op: "measure input duration", Err: err}
	}
	outDur, err := m.prober.Duration(ctx, final)
	if err != nil {
		return &UnexpectedError{Op: "measure output duration", Err: err}
	}
	if math.Abs(in-outDur) > m.cfg.DurationTolerance.Seconds() {
		return &DurationMismatchError{Input: in, Output: outDur, Tolerance: m.cfg.DurationTolerance}
	}
	return nil
}

// cleanup removes paths best-effort. Files that are already gone are not
// reported; other failures are logged and never change the outcome.
func (m *Machine) cleanup(j *job, paths []string) {
	for _, p := range paths {
		if err := m.remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			j.log.Warn("Cleanup: cannot remove %s: %v", filepath.Base(p), err)
		}
	}
}
