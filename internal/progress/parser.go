// Package progress turns ffmpeg "-progress" telemetry (one key=value pair
// per line) into deduplicated progress events.
package progress

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes the two event shapes a Parser emits.
type Kind int

const (
	KindSummary   Kind = iota // All summary fields are known.
	KindCompleted             // The tool reported progress=end.
)

// CompletedText is the Text of every KindCompleted event.
const CompletedText = "completed"

// SummaryFields are the keys that must all be present before a summary is
// emitted, in display order.
var SummaryFields = []string{"frame", "fps", "out_time", "bitrate", "speed"}

// Event is one structured unit extracted from the telemetry stream.
type Event struct {
	Kind   Kind
	Fields map[string]string // Copy of SummaryFields values; nil for KindCompleted.
	Text   string            // Human-readable summary, or CompletedText.
}

// Frame returns the frame counter of a summary event, or -1 when unknown.
func (e Event) Frame() int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(e.Fields["frame"]), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// Parser accumulates key=value state across lines for one running command.
// The zero value is ready to use. A Parser is not safe for concurrent use.
type Parser struct {
	state    map[string]string
	lastText string
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes one line and returns the event it produced, if any.
func (p *Parser) Feed(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return Event{}, false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return Event{}, false
	}

	if key == "progress" && strings.Contains(value, "end") {
		p.Reset()
		return Event{Kind: KindCompleted, Text: CompletedText}, true
	}

	if p.state == nil {
		p.state = make(map[string]string, 16)
	}
	p.state[key] = value

	fields := make(map[string]string, len(SummaryFields))
	for _, k := range SummaryFields {
		v, ok := p.state[k]
		if !ok {
			return Event{}, false
		}
		fields[k] = v
	}

	text := fmt.Sprintf("frames= %s | fps= %s | time= %s | bitrate= %s | speed= %s",
		fields["frame"], fields["fps"], fields["out_time"], fields["bitrate"], fields["speed"])
	if text == p.lastText {
		return Event{}, false
	}
	p.lastText = text
	return Event{Kind: KindSummary, Fields: fields, Text: text}, true
}

// Reset drops all accumulated state, as if the Parser were new.
func (p *Parser) Reset() {
	p.state = nil
	p.lastText = ""
}
