package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, caseNumber string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "case_"+caseNumber+"_audit.md")
	require.NoError(t, os.WriteFile(path, []byte("# Case Quality Audit Report\n"), 0o644))
	return path
}

func TestReconcile_SynthesizesRecordForOrphanArtifact(t *testing.T) {
	s, root := newTestStore(t)
	reportDir := filepath.Join(root, "audit_reports")
	artifact := writeArtifact(t, reportDir, "99")

	r := NewReconciler(s, reportDir)
	result, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synthesized)
	assert.Equal(t, 0, result.Removed)

	job, ok := s.Get("existing_99")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, SourceArtifact, job.Source)
	assert.Equal(t, "99", job.CaseNumber)
	assert.Equal(t, artifact, job.ReportPath)
	assert.NotEmpty(t, job.Timestamp)
	assert.True(t, s.CaseSeen("99"))
}

func TestReconcile_IsIdempotent(t *testing.T) {
	s, root := newTestStore(t)
	reportDir := filepath.Join(root, "audit_reports")
	writeArtifact(t, reportDir, "11")
	writeArtifact(t, reportDir, "22")

	r := NewReconciler(s, reportDir)
	first, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 2, first.Synthesized)

	second, err := r.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, second)
}

func TestReconcile_SkipsArtifactWithCompletedRecord(t *testing.T) {
	s, root := newTestStore(t)
	reportDir := filepath.Join(root, "audit_reports")
	artifact := writeArtifact(t, reportDir, "12345")
	require.NoError(t, s.Put(NewCompletedFromArtifact("job-1", "12345", artifact, time.Now(), "")))

	result, err := NewReconciler(s, reportDir).Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Synthesized)
	_, ok := s.Get("existing_12345")
	assert.False(t, ok)
}

func TestReconcile_CollapsesDuplicates(t *testing.T) {
	s, root := newTestStore(t)
	reportDir := filepath.Join(root, "audit_reports")
	artifact := writeArtifact(t, reportDir, "7")

	// Two completed records and one failed record, all for case 7.
	require.NoError(t, s.Put(NewCompletedFromArtifact("job-old", "7", artifact, time.Now().Add(-2*time.Hour), "")))
	require.NoError(t, s.Put(NewCompletedFromArtifact("job-new", "7", artifact, time.Now(), "")))
	failed := &JobRecord{JobID: "job-failed", Status: StatusFailed, CaseNumber: "7", Error: "boom"}
	require.NoError(t, s.Put(failed))

	result, err := NewReconciler(s, reportDir).Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)

	// The completed record with the newest timestamp survives.
	require.Equal(t, 1, s.Len())
	survivor, ok := s.Get("job-new")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, survivor.Status)

	// At most one completed record per case after reconciliation.
	assert.Len(t, s.JobsForCase("7"), 1)
}

func TestReconcile_IgnoresForeignFiles(t *testing.T) {
	s, root := newTestStore(t)
	reportDir := filepath.Join(root, "audit_reports")
	require.NoError(t, os.MkdirAll(reportDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "notes.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "case_abc_audit.md"), []byte("x"), 0o644))

	result, err := NewReconciler(s, reportDir).Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, result)
	assert.Equal(t, 0, s.Len())
}

func TestReconcile_MissingReportDirIsNotAnError(t *testing.T) {
	s, root := newTestStore(t)

	result, err := NewReconciler(s, filepath.Join(root, "nope")).Reconcile()
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, result)
}

func TestReconcile_RebuildsIndexAfterReset(t *testing.T) {
	s, root := newTestStore(t)
	reportDir := filepath.Join(root, "audit_reports")
	artifact := writeArtifact(t, reportDir, "55")
	require.NoError(t, s.Put(NewCompletedFromArtifact("job-1", "55", artifact, time.Now(), "")))

	_, _, err := s.Reset(false)
	require.NoError(t, err)
	assert.False(t, s.CaseSeen("55"))

	_, err = NewReconciler(s, reportDir).Reconcile()
	require.NoError(t, err)
	assert.True(t, s.CaseSeen("55"))

	// The existing completed record was found again, nothing synthesized.
	_, ok := s.Get("existing_55")
	assert.False(t, ok)
}
