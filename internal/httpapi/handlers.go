package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/caseops/caseaudit/internal/service"
)

// maxUploadBytes caps a single uploaded document.
const maxUploadBytes = 50 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer f.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF uploads are supported")
		return
	}

	result, err := s.svc.Submit(r.Context(), header.Filename, f)
	if err != nil {
		writeError(w, statusForError(err), errorMessage(err))
		return
	}

	code := http.StatusAccepted
	if result.Reused {
		code = http.StatusOK
	}
	writeJSON(w, code, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Status(chi.URLParam(r, "job_id"))
	if err != nil {
		writeError(w, statusForError(err), errorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	path, job, err := s.svc.Report(chi.URLParam(r, "id"))
	if err != nil {
		payload := map[string]any{"error": errorMessage(err)}
		if job != nil {
			payload["status"] = job.Status
			if job.Error != "" {
				payload["detail"] = job.Error
			}
		}
		writeJSON(w, statusForError(err), payload)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": s.svc.CompletedReports(),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Delete(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForError(err), errorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCleanJobsFile(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Reconcile()
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	clearJobs := r.URL.Query().Get("clear_jobs") == "true"
	cases, jobsCleared, err := s.svc.Reset(clearJobs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cases_cleared": cases,
		"jobs_cleared":  jobsCleared,
	})
}

func statusForError(err error) int {
	switch service.TypeOf(err) {
	case service.ErrNotFound, service.ErrArtifactMissing:
		return http.StatusNotFound
	case service.ErrNotReady:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	var auditErr *service.AuditError
	if errors.As(err, &auditErr) && auditErr.Message != "" {
		return auditErr.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
