package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/caseops/caseaudit/pkg/log"
)

var artifactNameRe = regexp.MustCompile(`^case_(\d+)_audit\.md$`)

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Synthesized int `json:"synthesized"`
	Removed     int `json:"removed"`
}

// Reconciler keeps the store consistent with the report artifacts on disk:
// it synthesizes completed records for artifacts nothing references and
// collapses duplicate records for the same case. It runs at startup, on a
// cron schedule, and on the admin endpoint; concurrent triggers are collapsed
// into a single pass.
type Reconciler struct {
	store     *Store
	reportDir string
	sf        singleflight.Group
}

func NewReconciler(store *Store, reportDir string) *Reconciler {
	return &Reconciler{store: store, reportDir: reportDir}
}

// Reconcile runs one pass. It is idempotent: a second run with no
// intervening external change reports zero changes.
func (r *Reconciler) Reconcile() (ReconcileResult, error) {
	v, err, _ := r.sf.Do("reconcile", func() (any, error) {
		return r.reconcileOnce()
	})
	result, _ := v.(ReconcileResult)
	return result, err
}

func (r *Reconciler) reconcileOnce() (ReconcileResult, error) {
	var result ReconcileResult

	artifacts, err := scanArtifacts(r.reportDir)
	if err != nil {
		return result, err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// The index is derived state; rebuild it from the store so a preceding
	// admin reset cannot leave reconciliation blind.
	s.index.Clear()
	for _, job := range s.jobs {
		s.index.Add(job.CaseNumber, job.JobID)
	}

	for _, artifact := range artifacts {
		s.index.Add(artifact.caseNumber, "")
		if _, ok := s.completedForCaseLocked(artifact.caseNumber); ok {
			continue
		}
		job := NewCompletedFromArtifact(
			SyntheticJobID(artifact.caseNumber),
			artifact.caseNumber,
			artifact.path,
			artifact.modTime,
			fmt.Sprintf("Reconstructed from report artifact for case %s", artifact.caseNumber),
		)
		if prev, ok := s.jobs[job.JobID]; ok {
			s.index.Remove(prev.CaseNumber, prev.JobID)
		}
		s.jobs[job.JobID] = job
		s.index.Add(job.CaseNumber, job.JobID)
		result.Synthesized++
		log.Info("Reconciler synthesized record %s for artifact %s", job.JobID, artifact.path)
	}

	result.Removed = s.collapseDuplicatesLocked()

	if result.Synthesized > 0 || result.Removed > 0 {
		if err := s.saveLocked(); err != nil {
			return result, err
		}
	}
	return result, nil
}

// collapseDuplicatesLocked keeps exactly one record per case number and
// removes the rest. The survivor is chosen deterministically (see
// preferRecord) rather than by incidental iteration order.
func (s *Store) collapseDuplicatesLocked() int {
	removed := 0
	for caseNumber, set := range s.byCaseSnapshotLocked() {
		if len(set) < 2 {
			continue
		}
		var winner *JobRecord
		for _, id := range set {
			job, ok := s.jobs[id]
			if !ok {
				continue
			}
			if winner == nil || preferRecord(job, winner) {
				winner = job
			}
		}
		for _, id := range set {
			if winner != nil && id == winner.JobID {
				continue
			}
			delete(s.jobs, id)
			s.index.Remove(caseNumber, id)
			removed++
			log.Info("Reconciler removed duplicate record %s for case %s", id, caseNumber)
		}
	}
	return removed
}

func (s *Store) byCaseSnapshotLocked() map[string][]string {
	ret := make(map[string][]string, len(s.index.byCase))
	for caseNumber := range s.index.byCase {
		ret[caseNumber] = s.index.Jobs(caseNumber)
	}
	return ret
}

type artifactFile struct {
	path       string
	caseNumber string
	modTime    time.Time
}

// scanArtifacts enumerates report artifacts matching the expected naming
// convention in the report directory.
func scanArtifacts(dir string) ([]artifactFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan report directory %s: %w", dir, err)
	}

	ret := make([]artifactFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := artifactNameRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		ret = append(ret, artifactFile{
			path:       filepath.Join(dir, entry.Name()),
			caseNumber: m[1],
			modTime:    info.ModTime(),
		})
	}
	return ret, nil
}
