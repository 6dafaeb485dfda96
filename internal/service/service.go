package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/caseops/caseaudit/internal/analyze"
	"github.com/caseops/caseaudit/internal/extract"
	"github.com/caseops/caseaudit/internal/jobs"
	"github.com/caseops/caseaudit/internal/report"
	"github.com/caseops/caseaudit/pkg/log"
)

// DocumentReader extracts text and structured case information from one
// uploaded document.
type DocumentReader interface {
	Text() (string, error)
	CaseInfo() (extract.CaseInfo, error)
}

// ReaderFactory opens a reader for the document at path.
type ReaderFactory func(path string) DocumentReader

// CaseAnalyzer turns extracted case content into an audit report.
type CaseAnalyzer interface {
	AnalyzeCase(ctx context.Context, caseContent string, info extract.CaseInfo) (*analyze.AuditReport, error)
}

// ReportRenderer writes a report artifact to outputPath and returns the
// written path.
type ReportRenderer func(r *analyze.AuditReport, outputPath string) (string, error)

// AuditService ties the upload, deduplication, processing and report
// lifecycle together. Handlers talk to this type only.
type AuditService struct {
	store      *jobs.Store
	runner     *jobs.Runner
	reconciler *jobs.Reconciler
	analyzer   CaseAnalyzer
	newReader  ReaderFactory
	render     ReportRenderer
	uploadDir  string
	reportDir  string
}

func New(store *jobs.Store, reconciler *jobs.Reconciler, analyzer CaseAnalyzer, uploadDir, reportDir string) *AuditService {
	return &AuditService{
		store:      store,
		runner:     jobs.NewRunner(store),
		reconciler: reconciler,
		analyzer:   analyzer,
		newReader:  func(path string) DocumentReader { return extract.NewExtractor(path) },
		render: func(r *analyze.AuditReport, outputPath string) (string, error) {
			return report.NewGenerator(outputPath).Generate(r)
		},
		uploadDir: uploadDir,
		reportDir: reportDir,
	}
}

// SubmitResult describes the outcome of one document submission.
type SubmitResult struct {
	JobID   string      `json:"job_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
	Reused  bool        `json:"reused,omitempty"`
}

// Submit stores the uploaded document and either short-circuits to an
// existing report for the same case or queues a processing job. Failures on
// this path are surfaced to the caller synchronously; everything after the
// pending record is persisted happens on the runner.
func (s *AuditService) Submit(ctx context.Context, filename string, content io.Reader) (*SubmitResult, error) {
	jobID := uuid.NewString()

	inputPath, err := s.saveUpload(jobID, filename, content)
	if err != nil {
		return nil, WrapError(ErrStorage, "store uploaded document", err)
	}

	// Probe the document for its case number before queueing. A probe
	// failure is not fatal here: the job is queued anyway and the pipeline
	// reports the real error.
	caseNumber := ""
	if info, probeErr := s.newReader(inputPath).CaseInfo(); probeErr == nil {
		caseNumber = info.CaseNumber
	} else {
		log.Warn("Could not read case number from %s: %v", filename, probeErr)
	}

	if caseNumber != "" {
		if result, ok := s.reuseExisting(jobID, caseNumber); ok {
			s.removeUpload(inputPath)
			return result, nil
		}
	}

	job := jobs.NewPendingJob(jobID, inputPath, caseNumber)
	if err := s.store.Put(job); err != nil {
		s.removeUpload(inputPath)
		return nil, WrapError(ErrStorage, "persist job record", err)
	}

	s.runner.Dispatch(jobID, s.runJob)
	return &SubmitResult{
		JobID:   jobID,
		Status:  jobs.StatusPending,
		Message: "Document uploaded, processing started",
	}, nil
}

// reuseExisting checks whether a report for the case already exists, either
// as a completed record with its artifact still on disk or as an orphaned
// artifact to adopt. Records whose artifact has gone missing do not count;
// the case is processed again.
func (s *AuditService) reuseExisting(jobID, caseNumber string) (*SubmitResult, bool) {
	if existing, ok := s.store.CompletedForCase(caseNumber); ok {
		if _, ok := statFile(existing.ReportPath); ok {
			log.Info("Case %s already has report %s, reusing job %s", caseNumber, existing.ReportPath, existing.JobID)
			return &SubmitResult{
				JobID:   existing.JobID,
				Status:  jobs.StatusCompleted,
				Message: fmt.Sprintf("Report for case %s already exists", caseNumber),
				Reused:  true,
			}, true
		}
		log.Warn("Completed record %s for case %s lost its artifact, reprocessing", existing.JobID, caseNumber)
		return nil, false
	}

	artifactPath := filepath.Join(s.reportDir, report.ArtifactName(caseNumber))
	modTime, ok := statFile(artifactPath)
	if !ok {
		return nil, false
	}

	job := jobs.NewCompletedFromArtifact(jobID, caseNumber, artifactPath, modTime,
		fmt.Sprintf("Adopted existing report artifact for case %s", caseNumber))
	if err := s.store.Put(job); err != nil {
		log.Error("Failed to adopt artifact %s: %v", artifactPath, err)
		return nil, false
	}
	log.Info("Adopted artifact %s for case %s as job %s", artifactPath, caseNumber, jobID)
	return &SubmitResult{
		JobID:   jobID,
		Status:  jobs.StatusCompleted,
		Message: fmt.Sprintf("Found existing report for case %s", caseNumber),
		Reused:  true,
	}, true
}

// runJob is the processing pipeline: extract, analyze, render, complete. It
// runs on a runner goroutine; a returned error fails the job.
func (s *AuditService) runJob(ctx context.Context, job *jobs.JobRecord) error {
	reader := s.newReader(job.InputPath)

	info, err := reader.CaseInfo()
	if err != nil {
		return WrapError(ErrExtraction, "extract case information", err)
	}
	text, err := reader.Text()
	if err != nil {
		return WrapError(ErrExtraction, "extract document text", err)
	}

	// Another submission for the same case may have finished while this job
	// waited. The later job adopts the earlier artifact instead of paying
	// for a second analysis.
	if other, ok := s.store.CompletedForCase(info.CaseNumber); ok && other.JobID != job.JobID {
		if _, ok := statFile(other.ReportPath); ok {
			log.Info("Job %s: case %s already completed by job %s, adopting its report", job.JobID, info.CaseNumber, other.JobID)
			if _, err := s.store.Complete(job.JobID, info.CaseNumber, other.ReportPath, time.Now()); err != nil {
				return WrapError(ErrStorage, "record adopted completion", err)
			}
			s.removeUpload(job.InputPath)
			return nil
		}
	}

	auditReport, err := s.analyzer.AnalyzeCase(ctx, text, info)
	if err != nil {
		return WrapError(ErrAnalysis, "analyze case", err)
	}

	outputPath := filepath.Join(s.reportDir, report.ArtifactName(info.CaseNumber))
	written, err := s.render(auditReport, outputPath)
	if err != nil {
		return WrapError(ErrRender, "render report", err)
	}

	if _, err := s.store.Complete(job.JobID, info.CaseNumber, written, time.Now()); err != nil {
		return WrapError(ErrStorage, "record completion", err)
	}
	s.removeUpload(job.InputPath)
	log.Info("Job %s completed, report at %s", job.JobID, written)
	return nil
}

// Status returns the current record for a job.
func (s *AuditService) Status(jobID string) (*jobs.JobRecord, error) {
	job, ok := s.store.Get(jobID)
	if !ok {
		return nil, NewError(ErrNotFound, "job %s not found", jobID)
	}
	return job, nil
}

// Report returns the artifact path for a completed job. The record is
// returned alongside errors where it exists, so callers can distinguish a
// failed job from an unknown one.
func (s *AuditService) Report(jobID string) (string, *jobs.JobRecord, error) {
	job, ok := s.store.Get(jobID)
	if !ok {
		return "", nil, NewError(ErrNotFound, "job %s not found", jobID)
	}
	if job.Status != jobs.StatusCompleted {
		return "", job, NewError(ErrNotReady, "job %s is %s, no report available", jobID, job.Status)
	}
	if _, ok := statFile(job.ReportPath); !ok {
		return "", job, NewError(ErrArtifactMissing, "report file for job %s is missing", jobID)
	}
	return job.ReportPath, job, nil
}

// Jobs returns all records, sorted by job id.
func (s *AuditService) Jobs() []*jobs.JobRecord {
	return s.store.List()
}

// CompletedReports returns all completed records keyed by job id.
func (s *AuditService) CompletedReports() map[string]*jobs.JobRecord {
	return s.store.ListCompleted()
}

// DeleteResult describes what a case deletion removed.
type DeleteResult struct {
	CaseNumber      string   `json:"case_number"`
	ArtifactRemoved bool     `json:"report_removed"`
	RecordsRemoved  []string `json:"jobs_removed"`
}

// Delete removes the report artifact and every job record for a case. An
// artifact that is already gone is fine as long as records existed; when
// neither exists the case is reported as not found.
func (s *AuditService) Delete(caseNumber string) (*DeleteResult, error) {
	artifactPath := filepath.Join(s.reportDir, report.ArtifactName(caseNumber))

	artifactRemoved := false
	if err := os.Remove(artifactPath); err == nil {
		artifactRemoved = true
		log.Info("Removed report artifact %s", artifactPath)
	} else if !os.IsNotExist(err) {
		return nil, WrapError(ErrStorage, fmt.Sprintf("remove report artifact %s", artifactPath), err)
	}

	removed, err := s.store.RemoveCase(caseNumber)
	if err != nil {
		return nil, WrapError(ErrStorage, "remove job records", err)
	}

	if !artifactRemoved && len(removed) == 0 {
		return nil, NewError(ErrNotFound, "no report or job records for case %s", caseNumber)
	}
	return &DeleteResult{
		CaseNumber:      caseNumber,
		ArtifactRemoved: artifactRemoved,
		RecordsRemoved:  removed,
	}, nil
}

// Reconcile runs one reconciliation pass against the report directory. Used
// at startup, on the cron schedule and by the admin endpoint.
func (s *AuditService) Reconcile() (jobs.ReconcileResult, error) {
	return s.reconciler.Reconcile()
}

// Reset clears the dedup index and, when clearJobs is set, all job records.
func (s *AuditService) Reset(clearJobs bool) (casesCleared, jobsCleared int, err error) {
	return s.store.Reset(clearJobs)
}

// Wait blocks until all in-flight jobs finish. Called on shutdown.
func (s *AuditService) Wait() {
	s.runner.Wait()
}

func (s *AuditService) saveUpload(jobID, filename string, content io.Reader) (string, error) {
	name := filepath.Base(filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload.pdf"
	}
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	path := filepath.Join(s.uploadDir, jobID+"_"+name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

// removeUpload is best effort cleanup of a consumed upload.
func (s *AuditService) removeUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to remove upload %s: %v", path, err)
	}
}

func statFile(path string) (time.Time, bool) {
	if path == "" {
		return time.Time{}, false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
