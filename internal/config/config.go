// Package config holds runtime configuration: defaults, YAML file loading,
// CLI flag overrides, and validation. Defaults match the original
// optimizer service so a bare "vidopt serve" behaves the same way.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// --- Enum types for validated string fields ---

// Encoder selects the H.264 video encoder used by the reduce and optimize stages.
type Encoder string

const (
	EncoderAuto  Encoder = "auto"       // Resolved at startup by check.ResolveEncoder (default).
	EncoderNVENC Encoder = "h264_nvenc" // NVIDIA desktop GPUs.
	EncoderNVMPI Encoder = "h264_nvmpi" // NVIDIA Jetson (tegra) boards.
	EncoderX264  Encoder = "libx264"    // Software fallback.
)

// Container is the delivery container format of the final artifact.
type Container string

const (
	ContainerMKV Container = "mkv" // Matroska; no finalize stage needed.
	ContainerMP4 Container = "mp4" // MP4 (default); adds the finalize stage.
)

// WorkingContainer is the container every intermediate artifact is written in.
const WorkingContainer = ContainerMKV

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig],
// overlaid by [Load] when a config file is given, then by [ApplyFlags],
// and finally passed (by pointer) to packages that need it.
type Config struct {
	// Server.
	Addr      string `yaml:"addr"`       // Default: ":5000".
	UploadDir string `yaml:"upload_dir"` // Default: "uploads".

	// Dispatch.
	Extensions        []string `yaml:"extensions"`          // Default: .mp4 .mkv .avi .mov .flv .wmv.
	MaxConcurrentJobs int      `yaml:"max_concurrent_jobs"` // Default: 2. 0 means unbounded.
	OutputDir         string   `yaml:"output_dir"`          // Empty: artifacts are written next to the input.

	// Tools.
	FFmpegPath  string `yaml:"ffmpeg_path"`  // Default: "ffmpeg".
	FFprobePath string `yaml:"ffprobe_path"` // Default: "ffprobe".
	TegraLibDir string `yaml:"tegra_lib_dir"`

	// Encoding.
	Encoder         Encoder   `yaml:"encoder"`          // Default: "auto".
	Preset          string    `yaml:"preset"`           // Default: "fast".
	ReduceScale     string    `yaml:"reduce_scale"`     // Default: "1280:720".
	ReduceBitrate   string    `yaml:"reduce_bitrate"`   // Default: "2M".
	OptimizeBitrate string    `yaml:"optimize_bitrate"` // Default: "800k".
	OptimizeCQ      int       `yaml:"optimize_cq"`      // Default: 27 (nvenc only).
	OptimizeFPS     int       `yaml:"optimize_fps"`     // Default: 30.
	AudioCodec      string    `yaml:"audio_codec"`      // Default: "aac".
	AudioChannels   int       `yaml:"audio_channels"`   // Default: 2.
	DeinterlaceAuto bool      `yaml:"deinterlace_auto"` // Default: true.
	OutputContainer Container `yaml:"container"`        // Default: "mp4".

	// Validation.
	DurationTolerance time.Duration `yaml:"duration_tolerance"` // Default: 2s. YAML takes a duration string ("2s").
	FallbackFrames    int64         `yaml:"fallback_frames"`    // Default: 100.

	// Display and logging.
	Verbose   bool      `yaml:"verbose"`
	ColorMode ColorMode `yaml:"color"`    // Default: "auto".
	LogFile   string    `yaml:"log_file"` // Optional log file path.
}

// DefaultConfig returns a Config with every default filled in. Used as the
// base before [Load] and [ApplyFlags].
func DefaultConfig() Config {
	return Config{
		Addr:              ":5000",
		UploadDir:         "uploads",
		Extensions:        []string{".mp4", ".mkv", ".avi", ".mov", ".flv", ".wmv"},
		MaxConcurrentJobs: 2,
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		TegraLibDir:       "/usr/lib/aarch64-linux-gnu/tegra",
		Encoder:           EncoderAuto,
		Preset:            "fast",
		ReduceScale:       "1280:720",
		ReduceBitrate:     "2M",
		OptimizeBitrate:   "800k",
		OptimizeCQ:        27,
		OptimizeFPS:       30,
		AudioCodec:        "aac",
		AudioChannels:     2,
		DeinterlaceAuto:   true,
		OutputContainer:   ContainerMP4,
		DurationTolerance: 2 * time.Second,
		FallbackFrames:    100,
		ColorMode:         ColorAuto,
	}
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// Validate checks enum fields and numeric ranges, and canonicalizes the
// bitrate strings and extension list in place.
func (c *Config) Validate() error {
	switch c.Encoder {
	case EncoderAuto, EncoderNVENC, EncoderNVMPI, EncoderX264:
		// valid
	default:
		return errors.New("invalid encoder (use 'auto', 'h264_nvenc', 'h264_nvmpi' or 'libx264')")
	}

	switch c.OutputContainer {
	case ContainerMKV, ContainerMP4:
		// valid
	default:
		return errors.New("invalid container (use 'mkv' or 'mp4')")
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	var err error
	if c.ReduceBitrate, err = normalizeBitrate(c.ReduceBitrate); err != nil {
		return fmt.Errorf("reduce bitrate: %w", err)
	}
	if c.OptimizeBitrate, err = normalizeBitrate(c.OptimizeBitrate); err != nil {
		return fmt.Errorf("optimize bitrate: %w", err)
	}

	if c.MaxConcurrentJobs < 0 {
		return errors.New("max concurrent jobs must be >= 0 (0 = unbounded)")
	}
	if c.DurationTolerance < 0 {
		return errors.New("duration tolerance must not be negative")
	}
	if c.AudioChannels <= 0 {
		return errors.New("audio channels must be positive")
	}
	if c.OptimizeFPS <= 0 {
		return errors.New("optimize fps must be positive")
	}
	if c.FallbackFrames <= 0 {
		c.FallbackFrames = 100
	}
	if !strings.Contains(c.ReduceScale, ":") {
		return fmt.Errorf("invalid reduce scale %q (use W:H, e.g. 1280:720)", c.ReduceScale)
	}

	exts, err := normalizeExtensions(c.Extensions)
	if err != nil {
		return err
	}
	c.Extensions = exts

	if c.OutputDir != "" {
		c.OutputDir = NormalizeDirArg(c.OutputDir)
	}
	return nil
}

// normalizeBitrate validates and canonicalizes a video bitrate.
// Accepted forms: "800k", "800K", "2M", "2m", "800kbps", "2000000". Output
// keeps ffmpeg's suffix notation ("800k", "2M") or the bare number.
func normalizeBitrate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("bitrate must not be empty")
	}
	lower := strings.ToLower(s)
	lower = strings.TrimSuffix(lower, "bps")

	suffix := ""
	switch {
	case strings.HasSuffix(lower, "k"):
		suffix = "k"
	case strings.HasSuffix(lower, "m"):
		suffix = "M"
	}
	num := strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(lower, "k"), "m"))
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid bitrate %q (use a positive value, e.g. 800k or 2M)", raw)
	}
	return strconv.Itoa(n) + suffix, nil
}

// normalizeExtensions lowercases extensions and ensures a leading dot.
func normalizeExtensions(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, errors.New("at least one file extension is required")
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			return nil, fmt.Errorf("invalid extension %q", e)
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.ContainsRune(e, filepath.Separator) {
			return nil, fmt.Errorf("invalid extension %q", e)
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out, nil
}

// NeedsFinalize reports whether the delivery container differs from the
// working container, which adds the finalize (container conversion) stage.
func (c *Config) NeedsFinalize() bool {
	return c.OutputContainer != WorkingContainer
}

// IsSupportedExt reports whether path carries one of the configured extensions.
func (c *Config) IsSupportedExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// parseTolerance accepts a Go duration ("2s", "1500ms") or a bare number of
// seconds ("2", "1.5").
func parseTolerance(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid tolerance %q (use e.g. 2s or 2)", raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
