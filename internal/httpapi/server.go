package httpapi

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/caseops/caseaudit/internal/jobs"
	"github.com/caseops/caseaudit/internal/service"
)

// AuditAPI is the slice of the audit service the HTTP layer needs.
type AuditAPI interface {
	Submit(ctx context.Context, filename string, content io.Reader) (*service.SubmitResult, error)
	Status(jobID string) (*jobs.JobRecord, error)
	Report(jobID string) (string, *jobs.JobRecord, error)
	Jobs() []*jobs.JobRecord
	CompletedReports() map[string]*jobs.JobRecord
	Delete(caseNumber string) (*service.DeleteResult, error)
	Reconcile() (jobs.ReconcileResult, error)
	Reset(clearJobs bool) (casesCleared, jobsCleared int, err error)
}

type Server struct {
	svc    AuditAPI
	router chi.Router
	server *http.Server
}

func NewServer(svc AuditAPI) *Server {
	s := &Server{
		svc:    svc,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)

	s.router.Get("/health", s.handleHealth)
	s.router.Post("/upload", s.handleUpload)
	s.router.Get("/status/{job_id}", s.handleStatus)
	// GET takes a job id, DELETE takes a case number. The single param name
	// is a router constraint: chi rejects two names at the same position.
	s.router.Get("/report/{id}", s.handleReport)
	s.router.Delete("/report/{id}", s.handleDelete)
	s.router.Get("/reports/", s.handleListReports)
	s.router.Get("/jobs/stream", s.handleJobStream)

	s.router.Route("/admin", func(r chi.Router) {
		r.Post("/clean-jobs-file", s.handleCleanJobsFile)
		r.Post("/reset", s.handleReset)
	})
}
