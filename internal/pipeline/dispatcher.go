package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/logging"
	"github.com/backmassage/vidopt/internal/status"
)

// MsgNoVideos is the log line shown when a directory holds no supported file.
const MsgNoVideos = "no valid videos found"

// Batch describes the jobs launched by one [Dispatcher.Start] call.
type Batch struct {
	ID    string   `json:"id"`
	Files []string `json:"files"`
}

// Dispatcher turns a file or directory into concurrently running pipelines.
// Start never waits for a job; admission control happens inside each job's
// goroutine.
type Dispatcher struct {
	ctx  context.Context
	cfg  *config.Config
	log  *logging.Logger
	sink *status.Sink
	sem  *semaphore.Weighted // nil when unbounded

	process func(ctx context.Context, path string) Outcome

	wg    sync.WaitGroup
	mu    sync.Mutex
	stats RunStats
}

// NewDispatcher returns a Dispatcher that runs jobs through m. ctx bounds
// every job and is cancelled only at process shutdown.
func NewDispatcher(ctx context.Context, cfg *config.Config, log *logging.Logger, sink *status.Sink, m *Machine) *Dispatcher {
	if log == nil {
		log = logging.Discard()
	}
	d := &Dispatcher{
		ctx:     ctx,
		cfg:     cfg,
		log:     log,
		sink:    sink,
		process: m.Process,
	}
	if cfg.MaxConcurrentJobs > 0 {
		d.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs))
	}
	return d
}

// Start validates path and launches one pipeline per supported file.
//
//   - A missing path or a single file with an unsupported extension is
//     rejected with *InvalidInputError; no job is created.
//   - A directory is enumerated recursively and clears the history before
//     its jobs launch. An empty match sets [MsgNoVideos] and returns an
//     empty batch.
func (d *Dispatcher) Start(path string) (Batch, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Batch{}, &InvalidInputError{Path: path, Reason: "path does not exist"}
	}

	batch := Batch{ID: uuid.NewString()}
	if fi.IsDir() {
		files, err := Discover(path, d.cfg.Extensions)
		if err != nil {
			return Batch{}, &UnexpectedError{Op: "discover", Err: err}
		}
		d.sink.ClearHistory()
		if len(files) == 0 {
			d.sink.SetLogLine("", MsgNoVideos)
			d.log.Warn("%s in %s", MsgNoVideos, path)
			return batch, nil
		}
		batch.Files = files
	} else {
		if !d.cfg.IsSupportedExt(path) {
			msg := fmt.Sprintf("unsupported file extension: %s", filepath.Base(path))
			d.sink.SetLogLine("", msg)
			d.log.Warn("%s", msg)
			return Batch{}, &InvalidInputError{Path: path, Reason: "unsupported file extension"}
		}
		batch.Files = []string{path}
	}

	n := len(batch.Files)
	d.mu.Lock()
	d.stats.Total += n
	d.stats.Running += n
	d.mu.Unlock()

	for i, f := range batch.Files {
		d.log.Info("[%d/%d] Enqueuing %s", i+1, n, filepath.Base(f))
		d.wg.Add(1)
		go d.run(f)
	}
	return batch, nil
}

func (d *Dispatcher) run(path string) {
	defer d.wg.Done()

	if d.sem != nil {
		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			out := Outcome{
				Name:  filepath.Base(path),
				Path:  path,
				Stage: status.StageFailed,
				Err:   &UnexpectedError{Op: "admission", Err: err},
			}
			kind, msg := Classify(out.Err)
			d.sink.AppendHistory(out.Name, msg, kind)
			d.finish(out)
			return
		}
		defer d.sem.Release(1)
	}

	d.finish(d.process(d.ctx, path))
}

func (d *Dispatcher) finish(o Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.record(o)
}

// Wait blocks until every launched pipeline has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Stats returns a copy of the aggregate counters.
func (d *Dispatcher) Stats() RunStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
