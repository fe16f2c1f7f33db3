package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/vidopt/internal/logging"
	"github.com/backmassage/vidopt/internal/progress"
)

// NoProgress is returned by [Runner.Run] when the command finished without
// a single summary event.
const NoProgress = "no progress observed"

const (
	tailSize      = 20      // Diagnostic lines kept for error reports.
	maxLineLength = 1 << 20 // Scanner buffer cap per line.
)

// Runner executes stage commands and streams their telemetry. A Runner
// holds no per-command state and may be shared by concurrent pipelines.
type Runner struct {
	log     *logging.Logger
	verbose bool
}

// NewRunner returns a Runner that logs raw tool output at debug level.
func NewRunner(log *logging.Logger, verbose bool) *Runner {
	if log == nil {
		log = logging.Discard()
	}
	return &Runner{log: log, verbose: verbose}
}

// Run starts cmd, drains stdout and stderr concurrently, and feeds every line
// to a progress parser shared by both streams. onEvent (may be nil) receives
// events in the order the parser produced them. Both drains are joined before
// the process is reaped.
//
// On success Run returns the last summary text, or [NoProgress]. A command
// that cannot start or exits non-zero yields a *[StageExecutionError].
func (r *Runner) Run(ctx context.Context, cmd Command, onEvent func(progress.Event)) (string, error) {
	c := exec.CommandContext(ctx, cmd.Name, withProgressArgs(cmd.Args)...)

	stdout, err := c.StdoutPipe()
	if err != nil {
		return "", r.startError(cmd, err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return "", r.startError(cmd, err)
	}
	if err := c.Start(); err != nil {
		return "", r.startError(cmd, err)
	}

	var (
		mu     sync.Mutex
		parser = progress.NewParser()
		tail   = newTail(tailSize)
		last   string
	)
	handle := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		ev, ok := parser.Feed(line)
		if ok {
			if ev.Kind == progress.KindSummary {
				last = ev.Text
			}
			if onEvent != nil {
				onEvent(ev)
			}
			return
		}
		if isTelemetry(line) {
			return
		}
		tail.add(line)
		r.log.Debug(r.verbose, "[%s] %s", cmd.Stage, line)
	}

	var g errgroup.Group
	g.Go(func() error { return drain(stdout, handle) })
	g.Go(func() error { return drain(stderr, handle) })
	drainErr := g.Wait()

	waitErr := c.Wait()
	if waitErr != nil {
		lines := tail.lines()
		return "", &StageExecutionError{
			Stage:     cmd.Stage,
			ExitCode:  exitCode(waitErr),
			LastLines: lines,
			Hint:      Diagnose(lines),
			Err:       waitErr,
		}
	}
	if drainErr != nil {
		r.log.Warn("[%s] output drain: %v", cmd.Stage, drainErr)
	}
	if last == "" {
		return NoProgress, nil
	}
	return last, nil
}

func (r *Runner) startError(cmd Command, err error) error {
	return &StageExecutionError{Stage: cmd.Stage, ExitCode: -1, Err: err}
}

// withProgressArgs prepends the telemetry flags unless the caller already
// asked for progress output.
func withProgressArgs(args []string) []string {
	for _, a := range args {
		if a == "-progress" {
			return args
		}
	}
	out := make([]string, 0, len(args)+3)
	out = append(out, "-progress", "pipe:2", "-nostats")
	return append(out, args...)
}

// drain reads r line by line until EOF. ffmpeg separates live status
// updates with '\r', so both '\r' and '\n' end a line. After a scanner
// error the rest of the stream is discarded so the child never blocks on
// a full pipe.
func drain(r io.Reader, fn func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	sc.Split(scanLines)
	for sc.Scan() {
		if line := string(bytes.TrimSpace(sc.Bytes())); line != "" {
			fn(line)
		}
	}
	if err := sc.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// isTelemetry reports whether line is a bare key=value progress pair,
// which is kept out of diagnostic tails.
func isTelemetry(line string) bool {
	i := strings.IndexByte(line, '=')
	if i <= 0 {
		return false
	}
	for _, c := range line[:i] {
		if c == ' ' || c == ':' || c == '[' {
			return false
		}
	}
	return true
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// tail is a fixed-size ring of the most recent lines.
type tail struct {
	buf  []string
	next int
	full bool
}

func newTail(n int) *tail {
	return &tail{buf: make([]string, n)}
}

func (t *tail) add(line string) {
	t.buf[t.next] = line
	t.next = (t.next + 1) % len(t.buf)
	if t.next == 0 {
		t.full = true
	}
}

// lines returns the kept lines, oldest first.
func (t *tail) lines() []string {
	if !t.full {
		return append([]string(nil), t.buf[:t.next]...)
	}
	out := make([]string, 0, len(t.buf))
	out = append(out, t.buf[t.next:]...)
	return append(out, t.buf[:t.next]...)
}
