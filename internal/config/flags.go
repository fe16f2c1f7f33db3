package config

// This file binds CLI flags onto a Config. Flags are registered on a pflag
// set owned by the cobra root command; only flags the user actually passed
// are applied, so values from DefaultConfig and the YAML file hold otherwise.

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Flags holds the raw flag values until [ApplyFlags] copies the changed ones
// into a Config.
type Flags struct {
	ConfigFile string

	addr            string
	uploadDir       string
	outputDir       string
	extensions      []string
	maxJobs         int
	encoder         string
	container       string
	preset          string
	reduceBitrate   string
	optimizeBitrate string
	tolerance       string
	verbose         bool
	color           string
	noColor         bool
	logFile         string
}

// BindFlags registers every config flag on fs, using cfg for the help text defaults.
func BindFlags(fs *pflag.FlagSet, cfg *Config) *Flags {
	f := &Flags{}

	fs.StringVarP(&f.ConfigFile, "config", "c", "", "YAML config file")

	// Server and dispatch.
	fs.StringVar(&f.addr, "addr", cfg.Addr, "HTTP listen address (serve)")
	fs.StringVar(&f.uploadDir, "upload-dir", cfg.UploadDir, "Directory for uploaded files (serve)")
	fs.StringVarP(&f.outputDir, "output-dir", "o", cfg.OutputDir, "Directory for artifacts (default: next to each input)")
	fs.StringSliceVar(&f.extensions, "ext", cfg.Extensions, "Supported input extensions")
	fs.IntVarP(&f.maxJobs, "max-jobs", "j", cfg.MaxConcurrentJobs, "Max concurrent pipelines (0 = unbounded)")

	// Encoding.
	fs.StringVarP(&f.encoder, "encoder", "e", string(cfg.Encoder), "Video encoder: auto | h264_nvenc | h264_nvmpi | libx264")
	fs.StringVar(&f.container, "container", string(cfg.OutputContainer), "Final container: mp4 | mkv")
	fs.StringVar(&f.preset, "preset", cfg.Preset, "Encoder preset")
	fs.StringVar(&f.reduceBitrate, "reduce-bitrate", cfg.ReduceBitrate, "Target bitrate of the reduce stage")
	fs.StringVar(&f.optimizeBitrate, "opt-bitrate", cfg.OptimizeBitrate, "Target bitrate of the optimize stage")
	fs.StringVar(&f.tolerance, "tolerance", cfg.DurationTolerance.String(), "Max allowed duration drift between input and output")

	// Display.
	fs.BoolVarP(&f.verbose, "verbose", "v", cfg.Verbose, "Debug logging (includes ffmpeg output)")
	fs.StringVar(&f.color, "color", string(cfg.ColorMode), "Color output: auto | always | never")
	fs.BoolVar(&f.noColor, "no-color", false, "Same as --color=never")
	fs.StringVarP(&f.logFile, "log", "l", cfg.LogFile, "Append plain log lines to this file")

	return f
}

// ApplyFlags copies every flag the user set on fs into cfg.
func ApplyFlags(fs *pflag.FlagSet, f *Flags, cfg *Config) error {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}

	set("addr", func() { cfg.Addr = f.addr })
	set("upload-dir", func() { cfg.UploadDir = f.uploadDir })
	set("output-dir", func() { cfg.OutputDir = f.outputDir })
	set("ext", func() { cfg.Extensions = f.extensions })
	set("max-jobs", func() { cfg.MaxConcurrentJobs = f.maxJobs })
	set("encoder", func() { cfg.Encoder = Encoder(strings.ToLower(f.encoder)) })
	set("container", func() { cfg.OutputContainer = Container(strings.ToLower(f.container)) })
	set("preset", func() { cfg.Preset = f.preset })
	set("reduce-bitrate", func() { cfg.ReduceBitrate = f.reduceBitrate })
	set("opt-bitrate", func() { cfg.OptimizeBitrate = f.optimizeBitrate })
	set("verbose", func() { cfg.Verbose = f.verbose })
	set("color", func() { cfg.ColorMode = ColorMode(strings.ToLower(f.color)) })
	set("no-color", func() {
		if f.noColor {
			cfg.ColorMode = ColorNever
		}
	})
	set("log", func() { cfg.LogFile = f.logFile })

	if fs.Changed("tolerance") {
		d, err := parseTolerance(f.tolerance)
		if err != nil {
			return fmt.Errorf("--tolerance: %w", err)
		}
		cfg.DurationTolerance = d
	}
	return nil
}
