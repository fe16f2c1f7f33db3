package planner

import (
	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/probe"
)

// BuildAudioPlan produces the audio handling of the reduce stage, the only
// stage that transcodes audio.
//
//   - No audio streams → NoAudio (produces -an).
//   - Otherwise → encode to the configured codec, downmixing to at most
//     Config.AudioChannels but never upmixing a mono source.
func BuildAudioPlan(cfg *config.Config, pr *probe.ProbeResult) AudioPlan {
	if len(pr.AudioStreams) == 0 {
		return AudioPlan{NoAudio: true}
	}
	return AudioPlan{
		Codec:    cfg.AudioCodec,
		Channels: clampChannels(pr.AudioStreams[0].Channels, cfg.AudioChannels),
	}
}

func clampChannels(source, max int) int {
	if source < 1 {
		return max
	}
	if source > max {
		return max
	}
	return source
}
