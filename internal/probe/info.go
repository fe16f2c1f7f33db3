package probe

import (
	"math"
	"path/filepath"
	"strings"
)

// VideoInfo is the summary of a media file shown next to the live status.
type VideoInfo struct {
	Name       string  `json:"name"`
	Duration   float64 `json:"duration"`
	Resolution string  `json:"resolution"`
	Format     string  `json:"format"`
	VideoCodec string  `json:"vcodec"`
	AudioCodec string  `json:"acodec"`
	SizeMB     float64 `json:"size_mb"`
	HDR        bool    `json:"hdr"`
	Interlaced bool    `json:"interlaced"`
}

// Info summarizes the probe result for path.
func (p *ProbeResult) Info(path string) VideoInfo {
	vi := VideoInfo{
		Name:       filepath.Base(path),
		Duration:   round2(p.Format.Duration),
		Resolution: p.Resolution(),
		Format:     p.Format.FormatName,
		AudioCodec: p.AudioCodec(),
		SizeMB:     round2(float64(p.Format.Size) / (1024 * 1024)),
		HDR:        p.HDRType() != "sdr",
		Interlaced: p.IsInterlaced(),
	}
	// ffprobe reports every demuxer alias ("mov,mp4,m4a,3gp,3g2,mj2").
	if i := strings.IndexByte(vi.Format, ','); i > 0 {
		vi.Format = vi.Format[:i]
	}
	if p.PrimaryVideo != nil {
		vi.VideoCodec = p.PrimaryVideo.Codec
	}
	return vi
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
