package jobs

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final for a job id.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Source records how a job record came to exist. Records reconstructed from a
// report artifact carry SourceArtifact so no code has to parse meaning out of
// the job id string.
type Source string

const (
	SourceSubmitted Source = "submitted"
	SourceArtifact  Source = "artifact"
)

// TimestampFormat is the human-readable timestamp format persisted in job
// records, e.g. "May 10, 2025 11:30 PM".
const TimestampFormat = "Jan 02, 2006 03:04 PM"

// SyntheticJobID is the deterministic id the reconciler assigns to a record
// synthesized for an orphaned artifact. Determinism keeps reconciliation
// idempotent across restarts.
func SyntheticJobID(caseNumber string) string {
	return "existing_" + caseNumber
}

// JobRecord is the tracked unit of work for one submission attempt.
//
// Field presence follows status: pending/processing records carry InputPath,
// completed records carry ReportPath, failed records carry Error. Path fields
// hold absolute paths in memory; the store converts them to root-relative
// form on disk.
type JobRecord struct {
	JobID      string `json:"job_id"`
	Status     Status `json:"status"`
	Source     Source `json:"source,omitempty"`
	CaseNumber string `json:"case_number,omitempty"`
	InputPath  string `json:"file_path,omitempty"`
	ReportPath string `json:"report_url,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	Note       string `json:"note,omitempty"`
}

// NewPendingJob creates a freshly submitted job record.
func NewPendingJob(jobID, inputPath, caseNumber string) *JobRecord {
	return &JobRecord{
		JobID:      jobID,
		Status:     StatusPending,
		Source:     SourceSubmitted,
		CaseNumber: caseNumber,
		InputPath:  inputPath,
		Timestamp:  time.Now().Format(TimestampFormat),
	}
}

// NewCompletedFromArtifact creates a record reconstructed from an existing
// report artifact on disk.
func NewCompletedFromArtifact(jobID, caseNumber, reportPath string, modTime time.Time, note string) *JobRecord {
	return &JobRecord{
		JobID:      jobID,
		Status:     StatusCompleted,
		Source:     SourceArtifact,
		CaseNumber: caseNumber,
		ReportPath: reportPath,
		Timestamp:  modTime.Format(TimestampFormat),
		Note:       note,
	}
}

// Validate checks the status/field consistency invariants.
func (j *JobRecord) Validate() error {
	if j.JobID == "" {
		return fmt.Errorf("job record missing job_id")
	}
	switch j.Status {
	case StatusPending, StatusProcessing:
		if j.InputPath == "" {
			return fmt.Errorf("job %s: %s record missing input path", j.JobID, j.Status)
		}
		if j.ReportPath != "" {
			return fmt.Errorf("job %s: %s record must not carry a report path", j.JobID, j.Status)
		}
	case StatusCompleted:
		if j.ReportPath == "" {
			return fmt.Errorf("job %s: completed record missing report path", j.JobID)
		}
		if j.InputPath != "" {
			return fmt.Errorf("job %s: completed record must not carry an input path", j.JobID)
		}
	case StatusFailed:
		if j.Error == "" {
			return fmt.Errorf("job %s: failed record missing error", j.JobID)
		}
	default:
		return fmt.Errorf("job %s: unknown status %q", j.JobID, j.Status)
	}
	return nil
}

// CreatedAt parses the record timestamp; the zero time is returned when the
// timestamp is absent or unparseable.
func (j *JobRecord) CreatedAt() time.Time {
	t, err := time.Parse(TimestampFormat, j.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

func cloneJob(job *JobRecord) *JobRecord {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
