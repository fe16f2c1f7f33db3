package progress

import (
	"strings"
	"testing"
)

// block is one ffmpeg -progress report with the given frame and out_time.
func block(frame, outTime, end string) []string {
	return []string{
		"frame=" + frame,
		"fps=29.97",
		"stream_0_0_q=23.0",
		"bitrate= 812.4kbits/s",
		"total_size=1048576",
		"out_time_us=10000000",
		"out_time=" + outTime,
		"dup_frames=0",
		"drop_frames=0",
		"speed=1.98x",
		"progress=" + end,
	}
}

func feedAll(p *Parser, lines []string) []Event {
	var out []Event
	for _, l := range lines {
		if ev, ok := p.Feed(l); ok {
			out = append(out, ev)
		}
	}
	return out
}

func TestFeed_SummaryOnceAllFieldsPresent(t *testing.T) {
	p := NewParser()
	events := feedAll(p, block("300", "00:00:10.010000", "continue"))

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	ev := events[0]
	if ev.Kind != KindSummary {
		t.Fatalf("kind = %v, want summary", ev.Kind)
	}
	want := "frames= 300 | fps= 29.97 | time= 00:00:10.010000 | bitrate= 812.4kbits/s | speed= 1.98x"
	if ev.Text != want {
		t.Errorf("text = %q\nwant  %q", ev.Text, want)
	}
	if ev.Frame() != 300 {
		t.Errorf("Frame() = %d, want 300", ev.Frame())
	}
	if len(ev.Fields) != len(SummaryFields) {
		t.Errorf("fields = %v, want exactly %v", ev.Fields, SummaryFields)
	}
}

func TestFeed_StatePersistsAcrossLines(t *testing.T) {
	p := NewParser()
	feedAll(p, block("100", "00:00:03.3", "continue"))

	// Only frame changes; the other four fields are remembered.
	ev, ok := p.Feed("frame=101")
	if !ok {
		t.Fatal("expected a new summary after frame change")
	}
	if !strings.HasPrefix(ev.Text, "frames= 101 | fps= 29.97") {
		t.Errorf("text = %q", ev.Text)
	}
}

func TestFeed_Deduplicates(t *testing.T) {
	p := NewParser()
	lines := append(block("50", "00:00:01.0", "continue"), block("50", "00:00:01.0", "continue")...)
	lines = append(lines, "fps=29.97", "speed=1.98x")
	events := feedAll(p, lines)

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 (identical summaries must be suppressed)", len(events))
	}
}

func TestFeed_NoConsecutiveDuplicates(t *testing.T) {
	p := NewParser()
	var lines []string
	for _, f := range []string{"1", "1", "2", "2", "2", "3", "1"} {
		lines = append(lines, block(f, "00:00:01.0", "continue")...)
	}
	events := feedAll(p, lines)
	for i := 1; i < len(events); i++ {
		if events[i].Text == events[i-1].Text {
			t.Fatalf("events %d and %d are identical: %q", i-1, i, events[i].Text)
		}
	}
	if len(events) != 4 {
		t.Errorf("got %d events, want 4 (1,2,3,1)", len(events))
	}
}

func TestFeed_TerminatorEmitsCompletedAndClears(t *testing.T) {
	p := NewParser()
	events := feedAll(p, block("900", "00:00:30.0", "end"))

	if len(events) != 2 {
		t.Fatalf("got %d events, want summary + completed", len(events))
	}
	last := events[1]
	if last.Kind != KindCompleted || last.Text != CompletedText {
		t.Errorf("last event = %+v, want completed", last)
	}
	if last.Frame() != -1 {
		t.Errorf("completed Frame() = %d, want -1", last.Frame())
	}

	// The mapping is cleared: a partial block no longer yields a summary.
	if ev, ok := p.Feed("frame=1"); ok {
		t.Errorf("unexpected event after terminator: %+v", ev)
	}
}

func TestFeed_RestartBehavesLikeNewParser(t *testing.T) {
	seq := block("120", "00:00:04.0", "continue")

	used := NewParser()
	feedAll(used, block("120", "00:00:04.0", "end"))
	got := feedAll(used, seq)

	want := feedAll(NewParser(), seq)
	if len(got) != len(want) || len(got) != 1 || got[0].Text != want[0].Text {
		t.Errorf("after terminator got %+v, fresh parser got %+v", got, want)
	}
}

func TestFeed_IgnoresNoise(t *testing.T) {
	p := NewParser()
	noise := []string{
		"",
		"   ",
		"Input #0, matroska,webm, from 'in.mkv':",
		"  Duration: 00:01:40.00, start: 0.000000, bitrate: 1800 kb/s",
		"=orphan",
		"Press [q] to stop",
	}
	if events := feedAll(p, noise); len(events) != 0 {
		t.Errorf("noise produced events: %+v", events)
	}
}

func TestFeed_SplitsOnFirstEquals(t *testing.T) {
	p := NewParser()
	lines := block("7", "00:00:00.2", "continue")
	lines[3] = "bitrate=a=b"
	events := feedAll(p, lines)
	if len(events) != 1 || events[0].Fields["bitrate"] != "a=b" {
		t.Errorf("events = %+v", events)
	}
}
