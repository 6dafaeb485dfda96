package file

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_RoundTrip(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root)

	abs := filepath.Join(root, "audit_reports", "case_12345_audit.md")

	rel := r.Rel(abs)
	require.False(t, filepath.IsAbs(rel))
	assert.Equal(t, filepath.Join("audit_reports", "case_12345_audit.md"), rel)

	back := r.Abs(rel)
	assert.Equal(t, abs, back)
}

func TestResolver_Rel_OutsideRootFallsBackToBase(t *testing.T) {
	r := NewResolver(t.TempDir())

	got := r.Rel(filepath.Join(string(filepath.Separator), "elsewhere", "case_1_audit.md"))
	assert.Equal(t, "case_1_audit.md", got)
}

func TestResolver_Rel_RelativeInputUnchanged(t *testing.T) {
	r := NewResolver(t.TempDir())

	assert.Equal(t, "already/relative.md", r.Rel("already/relative.md"))
	assert.Equal(t, "", r.Rel(""))
}

func TestResolver_Abs_AbsoluteInputUnchanged(t *testing.T) {
	r := NewResolver(t.TempDir())

	abs := filepath.Join(string(filepath.Separator), "tmp", "x.md")
	assert.Equal(t, abs, r.Abs(abs))
	assert.Equal(t, "", r.Abs(""))
}
