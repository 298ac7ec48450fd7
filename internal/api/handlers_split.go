package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/splitpdf/internal/pipeline"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
)

// maxIndexBytes caps an uploaded boundary table.
const maxIndexBytes = 1 << 20

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+maxIndexBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, fmt.Sprintf("unsupported file type: %q, only .pdf is accepted", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := readLimited(file, s.cfg.MaxUploadBytes)
	if err != nil {
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	var index []byte
	indexFile, _, err := r.FormFile("index")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		jsonError(w, "invalid index: "+err.Error(), http.StatusBadRequest)
		return
	default:
		index, err = readLimited(indexFile, maxIndexBytes)
		indexFile.Close()
		if err != nil {
			jsonError(w, "index: "+err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
	}

	profile := strings.ToLower(strings.TrimSpace(r.FormValue("profile")))
	if profile == "" {
		profile = s.orchestrator.DefaultProfile()
	}
	if _, err := s.orchestrator.Profiles().Budget(profile); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash := pipeline.SubmissionHash(data, index, profile)
	if existing := s.orchestrator.FindByHash(hash); existing != nil {
		s.log.Info("identical submission, reusing job", "job_id", existing.ID, "filename", filename)
		writeJSON(w, http.StatusOK, submitResponse(existing, true))
		return
	}

	job := pipeline.NewJob(filename, profile, hash)
	job.SetFileData(data, index)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.log.Info("split job queued",
		"job_id", job.ID,
		"filename", filename,
		"size", humanize.IBytes(uint64(len(data))),
		"profile", profile,
		"index", index != nil,
	)
	writeJSON(w, http.StatusAccepted, submitResponse(job, false))
}

func submitResponse(job *pipeline.Job, reused bool) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":   snap.ID,
		"status":   snap.Status,
		"profile":  snap.Profile,
		"reused":   reused,
		"poll_url": fmt.Sprintf("/api/split/%s/status", snap.ID),
	}
}

func (s *Server) handleSplitStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}

	// Only names the job itself wrote are served.
	name := chi.URLParam(r, "name")
	out, ok := job.Output(name)
	if !ok {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}

	f, err := s.orchestrator.Fs().Open(out.Path)
	if err != nil {
		s.log.Error("opening output failed", "job_id", jobID, "path", out.Path, "error", err)
		jsonError(w, "file not available", http.StatusGone)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		jsonError(w, "file not available", http.StatusGone)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func readLimited(f multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("upload exceeds max size (%s)", humanize.IBytes(uint64(limit)))
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed.pdf"
	}
	return name
}
