// Package check provides system diagnostics ("vidopt check"), pre-pipeline
// dependency validation (CheckDeps), and encoder auto-detection
// (ResolveEncoder) for ffmpeg, ffprobe, the H.264 encoders, and AAC.
package check

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/backmassage/vidopt/internal/config"
)

// Sentinel errors returned by CheckDeps and ResolveEncoder.
var (
	ErrFfmpegNotFound  = errors.New("ffmpeg not found")
	ErrFfprobeNotFound = errors.New("ffprobe not found")
	ErrEncoderFailed   = errors.New("video encoder test encode failed")
	ErrAACFailed       = errors.New("AAC test encode failed")
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// Seams for tests.
var (
	lookPath      = exec.LookPath
	runQuiet      = runSilent
	dirExists     = isDir
	commandOutput = output
)

// RunCheck runs the interactive check flow: prints availability of ffmpeg,
// ffprobe, the H.264 encoders, each encoder's test result, and AAC.
// This is informational only; it does not stop on failure.
func RunCheck(cfg *config.Config, log Logger) {
	log.Info("=== System Check ===")

	checkTool(log, cfg.FFmpegPath)
	checkTool(log, cfg.FFprobePath)
	checkH264Encoders(log, cfg)

	for _, enc := range []config.Encoder{config.EncoderNVMPI, config.EncoderNVENC, config.EncoderX264} {
		if TestEncoder(cfg, enc) {
			log.Success("%s works", enc)
		} else {
			log.Warn("%s test encode failed", enc)
		}
	}
	checkAAC(log, cfg)

	if enc, err := ResolveEncoder(cfg); err == nil {
		log.Info("Auto encoder selection: %s", enc)
	} else {
		log.Error("No usable encoder: %v", err)
	}
}

// checkTool verifies a binary is on PATH and logs its version string.
func checkTool(log Logger, bin string) {
	if _, err := lookPath(bin); err != nil {
		log.Error("%s not found", bin)
		return
	}
	out, err := commandOutput(bin, "-version")
	if err != nil {
		log.Warn("%s found but -version failed: %v", bin, err)
		return
	}
	firstLine := strings.TrimSpace(string(out))
	if idx := strings.Index(firstLine, "\n"); idx > 0 {
		firstLine = firstLine[:idx]
	}
	log.Success("%s: %s", bin, firstLine)
}

// checkH264Encoders lists all H.264 encoders reported by ffmpeg.
func checkH264Encoders(log Logger, cfg *config.Config) {
	log.Info("H.264 encoders:")
	out, err := commandOutput(cfg.FFmpegPath, "-hide_banner", "-encoders")
	if err != nil {
		log.Warn("Could not list encoders: %v", err)
		return
	}
	for _, line := range strings.Split(string(out), "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "h264") || strings.Contains(lower, "264") {
			log.Info("  %s", strings.TrimSpace(line))
		}
	}
}

// checkAAC runs a minimal AAC encode to verify the audio encoder works.
func checkAAC(log Logger, cfg *config.Config) {
	log.Info("Testing AAC encoder...")
	if runQuiet(cfg.FFmpegPath, aacTestArgs()...) {
		log.Success("AAC encoder works")
	} else {
		log.Error("AAC encoder test failed")
	}
}

// CheckDeps is the pre-pipeline validation: it verifies that ffmpeg and
// ffprobe are on PATH and that the configured (already resolved) encoder
// and the AAC encoder actually work. Returns a sentinel error on failure.
func CheckDeps(cfg *config.Config) error {
	if _, err := lookPath(cfg.FFmpegPath); err != nil {
		return ErrFfmpegNotFound
	}
	if _, err := lookPath(cfg.FFprobePath); err != nil {
		return ErrFfprobeNotFound
	}
	if cfg.Encoder != config.EncoderAuto && !TestEncoder(cfg, cfg.Encoder) {
		return fmt.Errorf("%w: %s", ErrEncoderFailed, cfg.Encoder)
	}
	if cfg.AudioCodec == "aac" && !runQuiet(cfg.FFmpegPath, aacTestArgs()...) {
		return ErrAACFailed
	}
	return nil
}

// ResolveEncoder picks the encoder for "auto": h264_nvmpi on Jetson boards
// (tegra libraries present), else h264_nvenc when a test encode works, else
// libx264. An explicit encoder is returned unchanged.
func ResolveEncoder(cfg *config.Config) (config.Encoder, error) {
	if cfg.Encoder != config.EncoderAuto && cfg.Encoder != "" {
		return cfg.Encoder, nil
	}
	if cfg.TegraLibDir != "" && dirExists(cfg.TegraLibDir) {
		return config.EncoderNVMPI, nil
	}
	if TestEncoder(cfg, config.EncoderNVENC) {
		return config.EncoderNVENC, nil
	}
	if TestEncoder(cfg, config.EncoderX264) {
		return config.EncoderX264, nil
	}
	return "", ErrEncoderFailed
}

// TestEncoder runs a minimal encode with enc and reports whether it succeeded.
func TestEncoder(cfg *config.Config, enc config.Encoder) bool {
	return runQuiet(cfg.FFmpegPath, encoderTestArgs(enc)...)
}

// encoderTestArgs returns the ffmpeg arguments for a minimal test encode.
// Shared by RunCheck, CheckDeps and ResolveEncoder.
func encoderTestArgs(enc config.Encoder) []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-c:v", string(enc),
		"-f", "null", "-",
	}
}

func aacTestArgs() []string {
	return []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "sine=frequency=1000:duration=0.1",
		"-c:a", "aac", "-f", "null", "-",
	}
}

// runSilent runs a command and returns true if it exits with status 0.
// Both stdout and stderr are discarded.
func runSilent(name string, args ...string) bool {
	cmd := exec.Command(name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func output(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}
