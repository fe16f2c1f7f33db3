package planner

import (
	"fmt"

	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/naming"
	"github.com/backmassage/vidopt/internal/probe"
)

// BuildPlan produces the complete stage list for one file. This is the
// central decision point the pipeline calls for every job.
//
// Flow:
//  1. Resolve the encoder (auto falls back to libx264 if never resolved)
//  2. Repair: stream copy into the working container, tolerating damage
//  3. Reduce: deinterlace/tonemap as needed, scale, recompress
//  4. Optimize: recompress at the delivery bitrate and frame rate
//  5. Finalize: container conversion when the delivery format differs
func BuildPlan(cfg *config.Config, input string, pr *probe.ProbeResult, art naming.Artifacts) *Plan {
	enc := cfg.Encoder
	if enc == config.EncoderAuto || enc == "" {
		enc = config.EncoderX264
	}

	plan := &Plan{
		InputPath:   input,
		Artifacts:   art,
		Encoder:     enc,
		TotalFrames: pr.EstimateFrames(cfg.FallbackFrames),
		Deinterlace: cfg.DeinterlaceAuto && pr.IsInterlaced(),
		Tonemap:     pr.HDRType() == "hdr10",
	}

	// --- 2. Repair ---
	// The source may list cover art before the real video; map the probed
	// stream by index.
	var videoMap string
	if pr.PrimaryVideo != nil {
		videoMap = fmt.Sprintf("0:%d", pr.PrimaryVideo.Index)
	}
	plan.Stages = append(plan.Stages, StageSpec{
		Stage:         StageRepair,
		Output:        art.Repaired,
		ErrorTolerant: true,
		VideoMap:      videoMap,
		VideoCodec:    "copy",
		Audio:         AudioPlan{Copy: true, NoAudio: len(pr.AudioStreams) == 0},
	})

	// --- 3. Reduce ---
	audio := BuildAudioPlan(cfg, pr)
	plan.Stages = append(plan.Stages, StageSpec{
		Stage:       StageReduce,
		Output:      art.Reduced,
		VideoCodec:  string(enc),
		VideoFilter: BuildReduceFilter(cfg, pr),
		Preset:      cfg.Preset,
		Bitrate:     cfg.ReduceBitrate,
		Audio:       audio,
	})

	// --- 4. Optimize ---
	// Audio is already in the target codec and layout after reduce.
	optAudio := AudioPlan{Copy: !audio.NoAudio, NoAudio: audio.NoAudio}
	plan.Stages = append(plan.Stages, StageSpec{
		Stage:      StageOptimize,
		Output:     art.Optimized,
		VideoCodec: string(enc),
		Preset:     cfg.Preset,
		Bitrate:    cfg.OptimizeBitrate,
		CQ:         cfg.OptimizeCQ,
		FPS:        cfg.OptimizeFPS,
		Audio:      optAudio,
	})

	// --- 5. Finalize ---
	if cfg.NeedsFinalize() {
		fin := StageSpec{
			Stage:      StageFinalize,
			Output:     art.Final,
			VideoCodec: "copy",
			Audio:      optAudio,
		}
		if cfg.OutputContainer == config.ContainerMP4 {
			fin.ContainerOpts = []string{"-movflags", "+faststart"}
		}
		plan.Stages = append(plan.Stages, fin)
	}

	// Chain inputs: each stage reads the previous artifact.
	for i := range plan.Stages {
		if i == 0 {
			plan.Stages[i].Input = plan.InputPath
			continue
		}
		plan.Stages[i].Input = plan.Stages[i-1].Output
	}
	return plan
}

// Final returns the path of the delivered artifact.
func (p *Plan) Final() string {
	return p.Artifacts.Final
}
