package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/logging"
	"github.com/backmassage/vidopt/internal/pipeline"
	"github.com/backmassage/vidopt/internal/probe"
	"github.com/backmassage/vidopt/internal/status"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	started []string
	err     error
	stats   pipeline.RunStats
}

func (f *fakeDispatcher) Start(path string) (pipeline.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return pipeline.Batch{}, f.err
	}
	f.started = append(f.started, path)
	return pipeline.Batch{ID: "batch-1", Files: []string{path}}, nil
}

func (f *fakeDispatcher) Stats() pipeline.RunStats {
	return f.stats
}

type fakeProber struct {
	calls int
}

func (f *fakeProber) Probe(_ context.Context, path string) (*probe.ProbeResult, error) {
	f.calls++
	return &probe.ProbeResult{
		Format:       probe.FormatInfo{FormatName: "mov,mp4,m4a", Duration: 12.5, Size: 2 << 20},
		PrimaryVideo: &probe.VideoStream{Codec: "h264", Width: 1280, Height: 720},
	}, nil
}

func newTestServer(t *testing.T) (*Server, *fakeDispatcher, *status.Sink, *fakeProber) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")
	sink := status.NewSink()
	disp := &fakeDispatcher{}
	prober := &fakeProber{}
	return New(&cfg, logging.Discard(), sink, disp, prober), disp, sink, prober
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing body", "", http.StatusBadRequest},
		{"missing folder", `{}`, http.StatusBadRequest},
		{"bad json", `{"folder":`, http.StatusBadRequest},
		{"nonexistent", `{"folder":"` + filepath.Join(dir, "nope") + `"}`, http.StatusBadRequest},
		{"ok", `{"folder":"` + dir + `"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, disp, _, _ := newTestServer(t)
			rec := do(t, s, httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(tt.body)))
			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.code, rec.Body.String())
			}
			if tt.code == http.StatusOK && (len(disp.started) != 1 || disp.started[0] != dir) {
				t.Errorf("started = %v", disp.started)
			}
			if tt.code != http.StatusOK && len(disp.started) != 0 {
				t.Errorf("dispatcher called on bad request")
			}
		})
	}
}

func TestProcess_InvalidInputIsBadRequest(t *testing.T) {
	s, disp, _, _ := newTestServer(t)
	disp.err = &pipeline.InvalidInputError{Path: "x", Reason: "unsupported file extension"}
	body := `{"folder":"` + t.TempDir() + `"}`
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "unsupported file extension") {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}

	disp.err = errors.New("disk on fire")
	rec = do(t, s, httptest.NewRequest(http.MethodPost, "/process", strings.NewReader(body)))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("got %d", rec.Code)
	}
}

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestProcessFile(t *testing.T) {
	s, disp, _, _ := newTestServer(t)

	for i := 0; i < 2; i++ {
		body, ct := multipartBody(t, "video", "clip.mp4", "payload")
		req := httptest.NewRequest(http.MethodPost, "/process-file", body)
		req.Header.Set("Content-Type", ct)
		rec := do(t, s, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d (%s)", rec.Code, rec.Body.String())
		}
	}

	if len(disp.started) != 2 || disp.started[0] == disp.started[1] {
		t.Fatalf("started = %v, want two distinct paths", disp.started)
	}
	if filepath.Base(disp.started[0]) != "clip.mp4" {
		t.Errorf("first upload stored as %s", disp.started[0])
	}
	for _, p := range disp.started {
		data, err := os.ReadFile(p)
		if err != nil || string(data) != "payload" {
			t.Errorf("%s: %q, %v", p, data, err)
		}
	}
}

func TestProcessFile_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		field string
		file  string
	}{
		{"wrong field", "file", "clip.mp4"},
		{"unsupported extension", "video", "notes.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, disp, _, _ := newTestServer(t)
			body, ct := multipartBody(t, tt.field, tt.file, "x")
			req := httptest.NewRequest(http.MethodPost, "/process-file", body)
			req.Header.Set("Content-Type", ct)
			if rec := do(t, s, req); rec.Code != http.StatusBadRequest {
				t.Errorf("code = %d", rec.Code)
			}
			if len(disp.started) != 0 {
				t.Errorf("dispatcher called")
			}
		})
	}
}

func TestStatus(t *testing.T) {
	s, _, sink, prober := newTestServer(t)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/status", nil))
	var idle map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &idle); err != nil {
		t.Fatal(err)
	}
	if idle["current_file"] != "" || idle["video_info"] != nil {
		t.Errorf("idle status = %v", idle)
	}

	sink.StartJob("j1", "clip.mp4", "/media/clip.mp4")
	sink.SetStage("j1", status.StageReducing)
	sink.SetProgress("j1", 10, 100)
	sink.AppendHistory("old.mp4", "processed successfully", status.KindSucceeded)

	for i := 0; i < 2; i++ {
		rec = do(t, s, httptest.NewRequest(http.MethodGet, "/status", nil))
	}
	var got struct {
		CurrentFile string           `json:"current_file"`
		Step        int              `json:"current_step"`
		Progress    int64            `json:"progress"`
		History     []map[string]any `json:"history"`
		VideoInfo   *probe.VideoInfo `json:"video_info"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.CurrentFile != "clip.mp4" || got.Step != 2 || got.Progress != 10 {
		t.Errorf("status = %+v", got)
	}
	if len(got.History) != 1 || got.History[0]["status"] != "processed successfully" {
		t.Errorf("history = %v", got.History)
	}
	if got.VideoInfo == nil || got.VideoInfo.Resolution != "1280x720" || got.VideoInfo.Format != "mov" {
		t.Errorf("video_info = %+v", got.VideoInfo)
	}
	if prober.calls != 1 {
		t.Errorf("probe calls = %d, want 1 (cached per file)", prober.calls)
	}
}

func TestStats(t *testing.T) {
	s, disp, _, _ := newTestServer(t)
	disp.stats = pipeline.RunStats{Total: 2, Encoded: 2, TotalInputBytes: 3 << 20, TotalOutputBytes: 1 << 20}
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["encoded"] != float64(2) || got["space_saved_human"] != "2.0 MiB (66.7%)" {
		t.Errorf("stats = %v", got)
	}
}

// gatedProber blocks probes of one path until release is closed.
type gatedProber struct {
	mu      sync.Mutex
	calls   map[string]int
	gate    string
	entered chan struct{}
	release chan struct{}
}

func (g *gatedProber) Probe(_ context.Context, path string) (*probe.ProbeResult, error) {
	g.mu.Lock()
	g.calls[path]++
	g.mu.Unlock()
	if path == g.gate {
		close(g.entered)
		<-g.release
	}
	return &probe.ProbeResult{PrimaryVideo: &probe.VideoStream{Codec: "h264", Width: 640, Height: 360}}, nil
}

func (g *gatedProber) count(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[path]
}

func TestVideoInfo_ProbesOutsideLockAndCachesPerPath(t *testing.T) {
	cfg := config.DefaultConfig()
	g := &gatedProber{
		calls:   map[string]int{},
		gate:    "/media/a.mp4",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New(&cfg, logging.Discard(), status.NewSink(), &fakeDispatcher{}, g)

	jobs := []status.JobStatus{{ID: "a", Path: "/media/a.mp4"}, {ID: "b", Path: "/media/b.mp4"}}
	snapA := status.Snapshot{CurrentPath: "/media/a.mp4", Jobs: jobs}
	snapB := status.Snapshot{CurrentPath: "/media/b.mp4", Jobs: jobs}
	ctx := context.Background()

	slow := make(chan *probe.VideoInfo)
	go func() { slow <- s.videoInfo(ctx, snapA) }()
	<-g.entered

	fast := make(chan *probe.VideoInfo)
	go func() { fast <- s.videoInfo(ctx, snapB) }()
	select {
	case vi := <-fast:
		if vi == nil || vi.Resolution != "640x360" {
			t.Errorf("b info = %+v", vi)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("status for b waited on the probe of a")
	}
	close(g.release)
	if vi := <-slow; vi == nil {
		t.Error("a info = nil")
	}

	// Alternating current files hit the cache.
	for i := 0; i < 3; i++ {
		s.videoInfo(ctx, snapA)
		s.videoInfo(ctx, snapB)
	}
	if g.count("/media/a.mp4") != 1 || g.count("/media/b.mp4") != 1 {
		t.Errorf("probe calls = %v, want one per file", g.calls)
	}

	// A finished job's entry is dropped, so a later run of the same path
	// is probed afresh.
	s.videoInfo(ctx, status.Snapshot{CurrentPath: "/media/b.mp4", Jobs: jobs[1:]})
	s.infoMu.Lock()
	_, cached := s.infoCache["/media/a.mp4"]
	s.infoMu.Unlock()
	if cached {
		t.Error("entry for a finished file still cached")
	}
}
