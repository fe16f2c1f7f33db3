package ffmpeg

import (
	"fmt"
	"regexp"
	"strings"
)

// StageExecutionError reports a stage command that could not start or
// exited non-zero. LastLines holds the trailing diagnostic output (progress
// telemetry excluded), oldest first.
type StageExecutionError struct {
	Stage     string
	ExitCode  int // -1 when the process never started or was killed.
	LastLines []string
	Hint      string // Best-effort diagnosis from the output, may be empty.
	Err       error
}

func (e *StageExecutionError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Stage, e.ExitCode)
	if e.ExitCode == -1 && e.Err != nil {
		msg = fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	if line := e.LastLine(); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *StageExecutionError) Unwrap() error {
	return e.Err
}

// LastLine returns the final diagnostic line, or "".
func (e *StageExecutionError) LastLine() string {
	if len(e.LastLines) == 0 {
		return ""
	}
	return e.LastLines[len(e.LastLines)-1]
}

// Pre-compiled regexes for classifying ffmpeg stderr output. Checked in
// order by [Diagnose]; the first match wins.
var (
	reEncoderUnavailable = regexp.MustCompile(
		`(?i)Unknown encoder|No NVENC capable devices|OpenEncodeSessionEx failed|` +
			`Cannot load libnvidia-encode|Cannot load libcuda|nvmpi.*(fail|error)`)

	reInputUnreadable = regexp.MustCompile(
		`(?i)No such file or directory|Invalid data found when processing input|` +
			`moov atom not found|EBML header parsing failed`)

	reNoSpace = regexp.MustCompile(`(?i)No space left on device`)

	reAttachmentIssue = regexp.MustCompile(
		`Attachment stream \d+ has no (filename|mimetype) tag`)

	reSubtitleIssue = regexp.MustCompile(
		`(?i)Subtitle codec .* is not supported|` +
			`Could not find tag for codec .* in stream .*subtitle|` +
			`Error initializing output stream .*subtitle|` +
			`Subtitle encoding currently only possible from text to text or bitmap to bitmap`)

	reMuxQueueOverflow = regexp.MustCompile(
		`Too many packets buffered for output stream`)

	reTimestampIssue = regexp.MustCompile(
		`(?i)Non-monotonous DTS|non monotonically increasing dts|` +
			`DTS .*out of order|PTS .*out of order|` +
			`pts has no value|missing PTS|Timestamps are unset`)
)

// diagnoses pairs each classifier with the hint shown to the user.
var diagnoses = []struct {
	re   *regexp.Regexp
	hint string
}{
	{reEncoderUnavailable, "video encoder unavailable"},
	{reInputUnreadable, "input unreadable"},
	{reNoSpace, "disk full"},
	{reAttachmentIssue, "attachment stream missing tags"},
	{reSubtitleIssue, "subtitle stream not supported by container"},
	{reMuxQueueOverflow, "mux queue overflow"},
	{reTimestampIssue, "timestamp discontinuity"},
}

// Diagnose returns a short hint for the first known failure pattern in
// output, or "" if none matches.
func Diagnose(output []string) string {
	joined := strings.Join(output, "\n")
	for _, d := range diagnoses {
		if d.re.MatchString(joined) {
			return d.hint
		}
	}
	return ""
}
