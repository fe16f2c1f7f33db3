package ffmpeg

import (
	"strconv"

	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/planner"
)

// Command is one external process invocation. Name is the binary; Stage
// labels the command in logs and errors.
type Command struct {
	Name  string
	Args  []string
	Stage string
}

// Build constructs the ffmpeg command for one stage. Every stage shares
// the same skeleton; codec and filter sections are injected per stage.
//
//	ffmpeg -hide_banner -nostdin -y -loglevel <lvl> [repair flags] -i <in>
//	       [-vf <chain>] -map <video> -map 0:a? <video> <audio> [container] <out>
func Build(cfg *config.Config, spec planner.StageSpec) Command {
	args := make([]string, 0, 48)

	// --- Preamble ---
	args = append(args, "-hide_banner", "-nostdin", "-y")
	if cfg.Verbose {
		args = append(args, "-loglevel", "info")
	} else {
		args = append(args, "-loglevel", "error")
	}

	// --- Pre-input flags (damaged sources) ---
	if spec.ErrorTolerant {
		args = append(args,
			"-err_detect", "ignore_err",
			"-fflags", "+genpts+discardcorrupt",
		)
	}

	// --- Input ---
	args = append(args, "-i", spec.Input)

	// --- Video filter chain (encode path only, before maps) ---
	if !spec.Copy() && spec.VideoFilter != "" {
		args = append(args, "-vf", spec.VideoFilter)
	}

	// --- Stream maps ---
	videoMap := spec.VideoMap
	if videoMap == "" {
		videoMap = "0:v:0"
	}
	args = append(args, "-map", videoMap)
	if !spec.Audio.NoAudio {
		args = append(args, "-map", "0:a?")
	}
	args = append(args, "-dn", "-sn")

	// --- Video codec ---
	args = appendVideoCodec(args, spec)

	// --- Audio codec ---
	args = appendAudioCodec(args, spec.Audio)

	// --- Container ---
	args = append(args, spec.ContainerOpts...)
	args = append(args, spec.Output)

	return Command{Name: cfg.FFmpegPath, Args: args, Stage: string(spec.Stage)}
}

// appendVideoCodec adds encoder-specific rate control. nvenc is driven by
// VBR with a constant-quality target, nvmpi and x264 by average bitrate.
func appendVideoCodec(args []string, spec planner.StageSpec) []string {
	if spec.Copy() {
		return append(args, "-c:v", "copy")
	}
	args = append(args, "-c:v", spec.VideoCodec)

	switch config.Encoder(spec.VideoCodec) {
	case config.EncoderNVENC:
		if spec.Preset != "" {
			args = append(args, "-preset", spec.Preset)
		}
		args = append(args, "-rc", "vbr")
		if spec.CQ > 0 {
			args = append(args, "-cq", strconv.Itoa(spec.CQ))
		}
		if spec.Bitrate != "" {
			args = append(args, "-b:v", spec.Bitrate)
		}
	case config.EncoderNVMPI:
		if spec.Bitrate != "" {
			args = append(args, "-b:v", spec.Bitrate)
		}
	default:
		if spec.Preset != "" {
			args = append(args, "-preset", spec.Preset)
		}
		if spec.Bitrate != "" {
			args = append(args, "-b:v", spec.Bitrate)
		}
	}

	if spec.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(spec.FPS))
	}
	return args
}

func appendAudioCodec(args []string, audio planner.AudioPlan) []string {
	switch {
	case audio.NoAudio:
		return append(args, "-an")
	case audio.Copy || audio.Codec == "":
		return append(args, "-c:a", "copy")
	}
	args = append(args, "-c:a", audio.Codec)
	if audio.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(audio.Channels))
	}
	return args
}
