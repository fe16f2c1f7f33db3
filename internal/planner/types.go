package planner

import (
	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/naming"
)

// Stage names one external command of a job, in execution order.
type Stage string

const (
	StageRepair   Stage = "repair"
	StageReduce   Stage = "reduce"
	StageOptimize Stage = "optimize"
	StageFinalize Stage = "finalize"
)

// Plan holds every decision for processing a single media file. It is
// produced by BuildPlan and consumed by the ffmpeg package (one command per
// StageSpec) and by the pipeline (artifact checks and cleanup).
type Plan struct {
	InputPath   string
	Artifacts   naming.Artifacts
	Stages      []StageSpec
	Encoder     config.Encoder
	TotalFrames int64 // Expected frame count for progress reporting.
	Deinterlace bool
	Tonemap     bool
}

// StageSpec is the recipe for one stage command.
type StageSpec struct {
	Stage  Stage
	Input  string
	Output string

	// Repair only: tolerate and regenerate broken timestamps while remuxing.
	ErrorTolerant bool

	// VideoMap is the -map target of the video stream. Empty selects the
	// first video stream, which is right for the single-video intermediates.
	VideoMap string

	// Video. VideoCodec is an encoder name or "copy".
	VideoCodec  string
	VideoFilter string // comma-joined filter chain (may be empty)
	Preset      string
	Bitrate     string
	CQ          int // Constant-quality target; 0 disables.
	FPS         int // Output frame rate; 0 keeps the source rate.

	Audio AudioPlan

	// Container-specific flags, e.g. -movflags +faststart.
	ContainerOpts []string
}

// Copy reports whether the stage only remuxes video.
func (s StageSpec) Copy() bool {
	return s.VideoCodec == "copy"
}

// AudioPlan describes the audio handling of one stage.
type AudioPlan struct {
	NoAudio  bool   // -an
	Copy     bool   // -c:a copy
	Codec    string // e.g. "aac"
	Channels int    // target channel count
}
