package probe

import (
	"math"
	"strconv"
)

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename       string
	FormatName     string
	FormatLongName string
	Duration       float64 // Seconds.
	Size           int64   // Bytes.
	BitRate        int64
}

// VideoStream holds the parsed properties of the primary video stream.
type VideoStream struct {
	Index          int
	Codec          string
	PixFmt         string
	Width          int
	Height         int
	BitRate        int64
	FieldOrder     string
	ColorTransfer  string
	ColorPrimaries string
	FrameRate      float64 // avg_frame_rate, falling back to r_frame_rate.
	Frames         int64   // nb_frames when the container reports it.
}

// AudioStream holds the parsed properties of a single audio stream.
type AudioStream struct {
	Index    int
	Codec    string
	Channels int
	BitRate  int64
}

// ProbeResult is the fully parsed output of a single ffprobe JSON call.
// PrimaryVideo is the first non-attached-pic video stream (nil if none).
type ProbeResult struct {
	Format       FormatInfo
	PrimaryVideo *VideoStream
	AudioStreams []AudioStream
}

// HasVideo reports whether the file has a decodable (non cover-art) video stream.
func (p *ProbeResult) HasVideo() bool {
	return p != nil && p.PrimaryVideo != nil && p.PrimaryVideo.Codec != ""
}

// Duration returns the container duration in seconds.
func (p *ProbeResult) Duration() float64 {
	return p.Format.Duration
}

// EstimateFrames returns the expected frame count: the container's frame
// count when known, otherwise frame rate × duration, otherwise fallback.
func (p *ProbeResult) EstimateFrames(fallback int64) int64 {
	if p.PrimaryVideo == nil {
		return fallback
	}
	if p.PrimaryVideo.Frames > 0 {
		return p.PrimaryVideo.Frames
	}
	n := int64(math.Round(p.PrimaryVideo.FrameRate * p.Format.Duration))
	if n <= 0 {
		return fallback
	}
	return n
}

// VideoBitRate returns the primary video stream bitrate in bits/sec,
// falling back to the format-level bitrate when the stream value is
// unavailable or zero.
func (p *ProbeResult) VideoBitRate() int64 {
	if p.PrimaryVideo != nil && p.PrimaryVideo.BitRate > 0 {
		return p.PrimaryVideo.BitRate
	}
	return p.Format.BitRate
}

// Resolution returns "WxH" for the primary video stream, or "unknown".
func (p *ProbeResult) Resolution() string {
	if p.PrimaryVideo == nil || p.PrimaryVideo.Width <= 0 || p.PrimaryVideo.Height <= 0 {
		return "unknown"
	}
	return strconv.Itoa(p.PrimaryVideo.Width) + "x" + strconv.Itoa(p.PrimaryVideo.Height)
}

// AudioCodec returns the codec of the first audio stream, or "".
func (p *ProbeResult) AudioCodec() string {
	if len(p.AudioStreams) == 0 {
		return ""
	}
	return p.AudioStreams[0].Codec
}
