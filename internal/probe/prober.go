package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Prober runs ffprobe. The zero value uses "ffprobe" from PATH.
type Prober struct {
	Bin string
}

// New returns a Prober that runs bin (empty means "ffprobe").
func New(bin string) *Prober {
	return &Prober{Bin: bin}
}

// Probe runs a single ffprobe JSON call against path and returns the
// parsed result. A file ffprobe cannot open is an error; a file it opens
// but that has no video stream is not (see [ProbeResult.HasVideo]).
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffprobe %q: %w: %s", path, err, lastLine(msg))
		}
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	return ParseJSON(out)
}

// Duration probes path and returns its container duration in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	pr, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if pr.Format.Duration <= 0 {
		return 0, fmt.Errorf("ffprobe %q: no duration reported", path)
	}
	return pr.Format.Duration, nil
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildResult(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename       string `json:"filename"`
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name"`
	Duration       string `json:"duration"`
	Size           string `json:"size"`
	BitRate        string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index          int            `json:"index"`
	CodecName      string         `json:"codec_name"`
	CodecType      string         `json:"codec_type"`
	PixFmt         string         `json:"pix_fmt"`
	Width          int            `json:"width"`
	Height         int            `json:"height"`
	BitRate        string         `json:"bit_rate"`
	FieldOrder     string         `json:"field_order"`
	ColorTransfer  string         `json:"color_transfer"`
	ColorPrimaries string         `json:"color_primaries"`
	AvgFrameRate   string         `json:"avg_frame_rate"`
	RFrameRate     string         `json:"r_frame_rate"`
	NbFrames       string         `json:"nb_frames"`
	Channels       int            `json:"channels"`
	Disposition    map[string]int `json:"disposition"`
}

// --- Conversion from wire types to domain types ---

func buildResult(raw *ffprobeOutput) *ProbeResult {
	pr := &ProbeResult{
		Format: FormatInfo{
			Filename:       raw.Format.Filename,
			FormatName:     raw.Format.FormatName,
			FormatLongName: raw.Format.FormatLongName,
			Duration:       parseFloat(raw.Format.Duration),
			Size:           parseInt64(raw.Format.Size),
			BitRate:        parseInt64(raw.Format.BitRate),
		},
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			// Cover art is reported as a video stream but cannot be transcoded.
			if s.Disposition["attached_pic"] == 1 || pr.PrimaryVideo != nil {
				continue
			}
			pr.PrimaryVideo = &VideoStream{
				Index:          s.Index,
				Codec:          s.CodecName,
				PixFmt:         s.PixFmt,
				Width:          s.Width,
				Height:         s.Height,
				BitRate:        parseInt64(s.BitRate),
				FieldOrder:     s.FieldOrder,
				ColorTransfer:  s.ColorTransfer,
				ColorPrimaries: s.ColorPrimaries,
				FrameRate:      firstRate(s.AvgFrameRate, s.RFrameRate),
				Frames:         parseInt64(s.NbFrames),
			}
		case "audio":
			pr.AudioStreams = append(pr.AudioStreams, AudioStream{
				Index:    s.Index,
				Codec:    s.CodecName,
				Channels: s.Channels,
				BitRate:  parseInt64(s.BitRate),
			})
		}
	}
	return pr
}

// firstRate returns the first positive frame rate among ffprobe rationals.
func firstRate(rates ...string) float64 {
	for _, r := range rates {
		if f := parseRational(r); f > 0 {
			return f
		}
	}
	return 0
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

// parseRational parses "30000/1001" or "25". A zero denominator yields 0.
func parseRational(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return parseFloat(num)
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return parseFloat(num) / d
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
