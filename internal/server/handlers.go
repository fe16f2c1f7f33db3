package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/vidopt/internal/display"
	"github.com/backmassage/vidopt/internal/pipeline"
	"github.com/backmassage/vidopt/internal/probe"
	"github.com/backmassage/vidopt/internal/status"
)

const (
	maxUploadMemory = 32 << 20
	probeTimeout    = 30 * time.Second
)

type processRequest struct {
	Folder string `json:"folder"`
}

type processResponse struct {
	Message string         `json:"message"`
	Batch   pipeline.Batch `json:"batch"`
}

type statusResponse struct {
	status.Snapshot
	VideoInfo *probe.VideoInfo `json:"video_info"`
}

type statsResponse struct {
	pipeline.RunStats
	SpaceSaved      int64  `json:"space_saved"`
	SpaceSavedHuman string `json:"space_saved_human"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.sink.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Snapshot:  snap,
		VideoInfo: s.videoInfo(r.Context(), snap),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st := s.disp.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		RunStats:        st,
		SpaceSaved:      st.SpaceSaved(),
		SpaceSavedHuman: display.FormatSavings(st.TotalInputBytes, st.TotalOutputBytes),
	})
}

// handleProcess starts a batch for a file or folder on the server's disk.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	folder := strings.TrimSpace(req.Folder)
	if folder == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "folder is required"})
		return
	}
	if _, err := os.Stat(folder); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "path does not exist"})
		return
	}
	s.start(w, folder)
}

// handleProcessFile stores the multipart "video" field in the upload
// directory and starts a job for it.
func (s *Server) handleProcessFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "video file is required"})
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid file name"})
		return
	}
	if !s.cfg.IsSupportedExt(name) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported file extension"})
		return
	}

	dest, err := s.saveUpload(name, file)
	if err != nil {
		s.log.Error("Upload %s: %v", name, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "cannot store upload"})
		return
	}
	s.log.Info("Received upload %s -> %s", name, dest)
	s.start(w, dest)
}

func (s *Server) start(w http.ResponseWriter, path string) {
	batch, err := s.disp.Start(path)
	if err != nil {
		var inv *pipeline.InvalidInputError
		if errors.As(err, &inv) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: inv.Reason})
			return
		}
		s.log.Error("Start %s: %v", path, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, processResponse{Message: "processing " + path, Batch: batch})
}

// saveUpload writes r under the upload directory. An existing file of the
// same name is never overwritten; the new one gets a unique prefix.
func (s *Server) saveUpload(name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(s.cfg.UploadDir, name)
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		dest = filepath.Join(s.cfg.UploadDir, uuid.NewString()[:8]+"-"+name)
		f, err = os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return "", err
	}
	return dest, f.Close()
}

// videoInfo returns the summary of the current file in snap, probing it
// on first request. Entries for files no longer in flight are dropped.
// Probe failures yield nil and are cached like any other result.
func (s *Server) videoInfo(ctx context.Context, snap status.Snapshot) *probe.VideoInfo {
	path := snap.CurrentPath
	if path == "" || s.prober == nil {
		return nil
	}

	s.infoMu.Lock()
	s.pruneInfo(snap.Jobs)
	vi, ok := s.infoCache[path]
	s.infoMu.Unlock()
	if ok {
		return vi
	}

	// The probe outlives a single request; one client hanging up must not
	// cache a failure for everyone else.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), probeTimeout)
	defer cancel()
	v, _, _ := s.infoGroup.Do(path, func() (any, error) {
		var vi *probe.VideoInfo
		pr, err := s.prober.Probe(ctx, path)
		if err != nil {
			s.log.Debug(s.cfg.Verbose, "video_info %s: %v", filepath.Base(path), err)
		} else {
			info := pr.Info(path)
			vi = &info
		}
		s.infoMu.Lock()
		s.infoCache[path] = vi
		s.infoMu.Unlock()
		return vi, nil
	})
	return v.(*probe.VideoInfo)
}

// pruneInfo drops cache entries for files no job is working on. Callers
// hold infoMu.
func (s *Server) pruneInfo(jobs []status.JobStatus) {
	for path := range s.infoCache {
		active := false
		for _, j := range jobs {
			if j.Path == path {
				active = true
				break
			}
		}
		if !active {
			delete(s.infoCache, path)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
