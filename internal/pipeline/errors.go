package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/backmassage/vidopt/internal/ffmpeg"
	"github.com/backmassage/vidopt/internal/status"
)

// History message prefixes. Exactly one of them starts every failure entry.
const (
	MsgSucceeded  = "processed successfully"
	prefixFFmpeg  = "ffmpeg error: "
	prefixInvalid = "validation error: "
	prefixOther   = "unexpected error: "
)

// InvalidInputError reports an input that cannot be processed at all: a
// missing path, an unsupported extension, or a file without a video stream.
type InvalidInputError struct {
	Path   string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// StageExecutionError is the ffmpeg stage failure, re-exported so callers
// of this package need not import ffmpeg to match it with errors.As.
type StageExecutionError = ffmpeg.StageExecutionError

// ArtifactMissingError reports a stage that exited cleanly but left no
// usable output.
type ArtifactMissingError struct {
	Stage string
	Path  string
	Size  int64 // -1 when the file does not exist.
}

func (e *ArtifactMissingError) Error() string {
	if e.Size < 0 {
		return fmt.Sprintf("%s produced no output file %s", e.Stage, e.Path)
	}
	return fmt.Sprintf("%s produced an empty output file %s", e.Stage, e.Path)
}

// DurationMismatchError reports a final artifact whose duration drifted
// from the input by more than the tolerance.
type DurationMismatchError struct {
	Input     float64 // seconds
	Output    float64 // seconds
	Tolerance time.Duration
}

func (e *DurationMismatchError) Error() string {
	return fmt.Sprintf("duration mismatch: input %.2fs, output %.2fs (tolerance %s)",
		e.Input, e.Output, e.Tolerance)
}

// UnexpectedError wraps anything outside the other categories, including
// recovered panics.
type UnexpectedError struct {
	Op  string
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// Classify maps a job error to its history kind and message. A nil error
// is a success.
func Classify(err error) (kind, message string) {
	if err == nil {
		return status.KindSucceeded, MsgSucceeded
	}

	var (
		invalid  *InvalidInputError
		stage    *StageExecutionError
		missing  *ArtifactMissingError
		mismatch *DurationMismatchError
	)
	switch {
	case errors.As(err, &stage):
		return status.KindStageExecution, prefixFFmpeg + err.Error()
	case errors.As(err, &missing):
		return status.KindArtifactMissing, prefixFFmpeg + err.Error()
	case errors.As(err, &invalid):
		return status.KindInvalidInput, prefixInvalid + err.Error()
	case errors.As(err, &mismatch):
		return status.KindDurationMismatch, prefixInvalid + err.Error()
	default:
		return status.KindUnexpected, prefixOther + err.Error()
	}
}
