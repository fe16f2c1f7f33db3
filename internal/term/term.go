// Package term decides whether output gets ANSI colors and holds the
// palette the logger and banner draw from.
package term

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/backmassage/vidopt/internal/config"
)

// Palette holds one escape sequence per role. The zero Palette disables
// colors: every field is empty, so concatenation is a no-op.
type Palette struct {
	Info    string
	Success string
	Warn    string
	Error   string
	Debug   string
	Banner  string
	Reset   string
}

var ansi = Palette{
	Info:    "\033[1;94m",
	Success: "\033[1;92m",
	Warn:    "\033[1;93m",
	Error:   "\033[1;91m",
	Debug:   "\033[1;96m",
	Banner:  "\033[1;95m",
	Reset:   "\033[0m",
}

// Colors is the active palette. Set once at startup by [Configure].
var Colors Palette

// Configure resolves mode against out and the environment and installs the
// matching palette.
func Configure(mode config.ColorMode, out *os.File) {
	if resolve(mode, out) {
		Colors = ansi
	} else {
		Colors = Palette{}
	}
}

// Enabled reports whether ANSI colors are active.
func Enabled() bool { return Colors.Reset != "" }

// resolve applies mode. In auto mode colors need a TTY, no NO_COLOR
// (https://no-color.org) and a TERM other than "dumb"; FORCE_COLOR wins
// over all three.
func resolve(mode config.ColorMode, out *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if os.Getenv("NO_COLOR") != "" || strings.EqualFold(os.Getenv("TERM"), "dumb") {
		return false
	}
	return IsTerminal(out)
}

// IsTerminal reports whether f is attached to a terminal, including Cygwin
// and MSYS ptys.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
