package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/caseops/caseaudit/pkg/file"
	"github.com/caseops/caseaudit/pkg/log"
)

// ErrNotFound is returned when a job id has no record in the store.
var ErrNotFound = errors.New("job not found")

// Store owns the persisted job mapping and its derived case index. It is the
// single source of truth for job state: every mutation is written through to
// the jobs document on disk as one whole-file replace.
//
// One mutex guards the in-memory map and the read-modify-write of the
// document, which makes concurrent mutators within this process safe. The
// jobs document itself has no cross-process guard; deployments with more than
// one writer process need file locking or a transactional store instead.
type Store struct {
	mu       sync.RWMutex
	path     string
	resolver file.Resolver
	jobs     map[string]*JobRecord
	index    *CaseIndex
}

// NewStore creates an empty store backed by the document at path. Call Load
// to hydrate it.
func NewStore(path string, resolver file.Resolver) *Store {
	return &Store{
		path:     path,
		resolver: resolver,
		jobs:     make(map[string]*JobRecord),
		index:    NewCaseIndex(),
	}
}

// Load reads the persisted document and rebuilds the case index. A missing
// document yields an empty store. Malformed content is logged and treated as
// empty rather than failing startup: the jobs document is a best-effort
// cache, the report artifacts on disk remain the ultimate truth.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = make(map[string]*JobRecord)
	s.index.Clear()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error("Failed to read jobs file %s: %v", s.path, err)
		}
		return
	}

	var loaded map[string]*JobRecord
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Error("Jobs file %s is malformed, starting empty: %v", s.path, err)
		return
	}

	for id, job := range loaded {
		if job == nil {
			continue
		}
		if job.JobID == "" {
			job.JobID = id
		}
		job.InputPath = s.resolver.Abs(job.InputPath)
		job.ReportPath = s.resolver.Abs(job.ReportPath)
		s.jobs[job.JobID] = job
		s.index.Add(job.CaseNumber, job.JobID)
	}
}

// saveLocked serializes the whole mapping with root-relative paths and
// replaces the document. Callers must hold the write lock. Every single-record
// update rewrites the entire store; that is a deliberate simplicity-over-
// throughput tradeoff for a low-volume job store.
func (s *Store) saveLocked() error {
	forStorage := make(map[string]*JobRecord, len(s.jobs))
	for id, job := range s.jobs {
		stored := cloneJob(job)
		stored.InputPath = s.resolver.Rel(stored.InputPath)
		stored.ReportPath = s.resolver.Rel(stored.ReportPath)
		forStorage[id] = stored
	}

	data, err := json.MarshalIndent(forStorage, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal jobs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create jobs directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write jobs file %s: %w", s.path, err)
	}
	return nil
}

// Get returns a copy of one job record.
func (s *Store) Get(jobID string) (*JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return cloneJob(job), true
}

// List returns copies of all records, sorted by job id.
func (s *Store) List() []*JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make([]*JobRecord, 0, len(s.jobs))
	for _, job := range s.jobs {
		ret = append(ret, cloneJob(job))
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].JobID < ret[j].JobID })
	return ret
}

// ListCompleted returns copies of all completed records keyed by job id.
func (s *Store) ListCompleted() map[string]*JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret := make(map[string]*JobRecord)
	for id, job := range s.jobs {
		if job.Status == StatusCompleted {
			ret[id] = cloneJob(job)
		}
	}
	return ret
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Put upserts a record and persists the store.
func (s *Store) Put(job *JobRecord) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.jobs[job.JobID]; ok && prev.CaseNumber != "" && prev.CaseNumber != job.CaseNumber {
		s.index.Remove(prev.CaseNumber, prev.JobID)
	}
	s.jobs[job.JobID] = cloneJob(job)
	s.index.Add(job.CaseNumber, job.JobID)
	return s.saveLocked()
}

// MarkProcessing transitions a pending job to processing and persists the
// store before returning, so status queries never observe a stale pending
// after the task has started.
func (s *Store) MarkProcessing(jobID string) (*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	if job.Status != StatusPending {
		return nil, fmt.Errorf("job %s: cannot start processing from %s", jobID, job.Status)
	}
	job.Status = StatusProcessing
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return cloneJob(job), nil
}

// Complete transitions a job to completed, attaching the case number and the
// report artifact. Terminal records are never resurrected.
func (s *Store) Complete(jobID, caseNumber, reportPath string, at time.Time) (*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("job %s: cannot complete from terminal %s", jobID, job.Status)
	}
	job.Status = StatusCompleted
	job.CaseNumber = caseNumber
	job.ReportPath = reportPath
	job.InputPath = ""
	job.Error = ""
	job.Timestamp = at.Format(TimestampFormat)
	s.index.Add(caseNumber, jobID)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return cloneJob(job), nil
}

// Fail transitions a job to failed with a diagnostic message. Failures are
// terminal; there is no automatic retry.
func (s *Store) Fail(jobID, message string) (*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	if job.Status.Terminal() {
		return nil, fmt.Errorf("job %s: cannot fail from terminal %s", jobID, job.Status)
	}
	job.Status = StatusFailed
	job.Error = message
	job.InputPath = ""
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return cloneJob(job), nil
}

// CompletedForCase returns the completed record for a case, if any. When
// duplicates exist pre-reconciliation, the deterministic collapse winner is
// returned.
func (s *Store) CompletedForCase(caseNumber string) (*JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completedForCaseLocked(caseNumber)
}

func (s *Store) completedForCaseLocked(caseNumber string) (*JobRecord, bool) {
	var winner *JobRecord
	for _, id := range s.index.Jobs(caseNumber) {
		job, ok := s.jobs[id]
		if !ok || job.Status != StatusCompleted {
			continue
		}
		if winner == nil || preferRecord(job, winner) {
			winner = job
		}
	}
	if winner == nil {
		return nil, false
	}
	return cloneJob(winner), true
}

// JobsForCase returns copies of every record referencing a case.
func (s *Store) JobsForCase(caseNumber string) []*JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.index.Jobs(caseNumber)
	ret := make([]*JobRecord, 0, len(ids))
	for _, id := range ids {
		if job, ok := s.jobs[id]; ok {
			ret = append(ret, cloneJob(job))
		}
	}
	return ret
}

// CaseSeen reports whether a case number has ever been indexed.
func (s *Store) CaseSeen(caseNumber string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Seen(caseNumber)
}

// RemoveCase deletes every record whose case number matches and forgets the
// case in the index. Returns the removed job ids.
func (s *Store) RemoveCase(caseNumber string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.index.Jobs(caseNumber)
	if len(removed) == 0 {
		return nil, nil
	}
	for _, id := range removed {
		delete(s.jobs, id)
	}
	s.index.Forget(caseNumber)
	if err := s.saveLocked(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Reset clears the dedup index and optionally the whole store. Destructive:
// with clearJobs the persisted document is emptied too.
func (s *Store) Reset(clearJobs bool) (casesCleared, jobsCleared int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	casesCleared = s.index.SeenCount()
	s.index.Clear()

	if clearJobs {
		jobsCleared = len(s.jobs)
		s.jobs = make(map[string]*JobRecord)
		if err := s.saveLocked(); err != nil {
			return casesCleared, jobsCleared, err
		}
	}
	return casesCleared, jobsCleared, nil
}

// preferRecord reports whether a should win over b during duplicate collapse.
// The tie-break is deterministic: completed beats non-completed, then the
// newer timestamp, then the lexicographically smaller job id. (The original
// behavior kept whichever record iteration happened to visit first.)
func preferRecord(a, b *JobRecord) bool {
	aCompleted := a.Status == StatusCompleted
	bCompleted := b.Status == StatusCompleted
	if aCompleted != bCompleted {
		return aCompleted
	}
	at, bt := a.CreatedAt(), b.CreatedAt()
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return a.JobID < b.JobID
}
