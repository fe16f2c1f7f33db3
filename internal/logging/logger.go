// Package logging provides the leveled logger shared by every package. It
// wraps a logrus logger with a line formatter that keeps the classic
// "timestamp [LEVEL] message" layout, optional ANSI colors, and an optional
// plain-text file sink.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/term"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	// tagKey carries the display label for levels logrus has no name for (SUCCESS).
	tagKey = "_tag"
)

// Logger provides leveled, optionally colored logging with an optional file
// sink. A Logger returned by [Logger.With] shares the sink of its parent.
type Logger struct {
	base  *logrus.Logger
	entry *logrus.Entry
	file  *fileHook
}

// NewLogger configures terminal colors from cfg and optionally opens
// cfg.LogFile. Call Close() when done if LogFile was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode, os.Stdout)

	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&lineFormatter{color: term.Enabled()})

	l := &Logger{base: base, entry: logrus.NewEntry(base)}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		l.file = &fileHook{w: f, formatter: &lineFormatter{}}
		base.AddHook(l.file)
	}
	return l, nil
}

// Discard returns a logger that writes nowhere. Handy for tests.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&lineFormatter{})
	return &Logger{base: base, entry: logrus.NewEntry(base)}
}

// SetOutput redirects console output (the file sink is unaffected).
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}

// With returns a logger that appends key=value to every line.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{base: l.base, entry: l.entry.WithField(key, value), file: l.file}
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Success logs at SUCCESS level (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.entry.WithField(tagKey, "SUCCESS").Infof(format, args...)
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Error logs at ERROR level (red).
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Debug logs at DEBUG level (cyan) only when verbose; no-op otherwise.
func (l *Logger) Debug(verbose bool, format string, args ...interface{}) {
	if !verbose {
		return
	}
	l.entry.Debugf(format, args...)
}

// --- Formatting ---

// lineFormatter renders "ts [LEVEL] message k=v ..." with fields sorted by key.
type lineFormatter struct {
	color bool
}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	label, color := levelStyle(e)

	var b bytes.Buffer
	b.WriteString(e.Time.Format(timeLayout))
	b.WriteByte(' ')
	if f.color && color != "" {
		b.WriteString(color + "[" + label + "]" + term.Colors.Reset)
	} else {
		b.WriteString("[" + label + "]")
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k != tagKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func levelStyle(e *logrus.Entry) (string, string) {
	if tag, ok := e.Data[tagKey].(string); ok && tag == "SUCCESS" {
		return tag, term.Colors.Success
	}
	switch e.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return "DEBUG", term.Colors.Debug
	case logrus.WarnLevel:
		return "WARN", term.Colors.Warn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return "ERROR", term.Colors.Error
	default:
		return "INFO", term.Colors.Info
	}
}

// --- File sink ---

// fileHook appends uncolored lines to the log file for every level.
type fileHook struct {
	mu        sync.Mutex
	w         io.WriteCloser
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(e *logrus.Entry) error {
	line, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.w == nil {
		return nil
	}
	_, err = h.w.Write(line)
	return err
}

func (h *fileHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.w == nil {
		return nil
	}
	err := h.w.Close()
	h.w = nil
	return err
}
