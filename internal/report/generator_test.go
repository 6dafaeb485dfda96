package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseops/caseaudit/internal/analyze"
	"github.com/caseops/caseaudit/internal/extract"
)

func sampleReport() *analyze.AuditReport {
	return &analyze.AuditReport{
		CaseInfo: extract.CaseInfo{
			CaseNumber:     "12345",
			CustomerName:   "Acme Logistics GmbH",
			ProductName:    "TIBCO BusinessWorks",
			ProductVersion: "2.9.1",
			Severity:       "Level 2",
			Status:         "Closed",
			Subject:        "Application crashes on startup",
			DateCreated:    time.Date(2024, 12, 3, 1, 36, 36, 0, time.UTC),
			DateClosed:     time.Date(2024, 12, 10, 18, 5, 12, 0, time.UTC),
		},
		Ratings: analyze.Ratings{
			InitialResponse:   4,
			ProblemDiagnosis:  5,
			TechnicalAccuracy: 4,
			SolutionQuality:   3,
			Communication:     4,
			OverallExperience: 4,
		},
		InitialResponseFeedback:   "Prompt first reply.",
		ProblemDiagnosisFeedback:  "Root cause found quickly.",
		TechnicalAccuracyFeedback: "Guidance was accurate.",
		SolutionFeedback:          "Workaround, then fix.",
		CommunicationFeedback:     "Regular updates.",
		OverallFeedback:           "Solid case handling.",
		CaseSummary:               "Startup crash traced to classpath conflict.",
		Recommendations:           "1. Escalate sooner. 2) Link documentation. Follow up proactively.",
	}
}

func TestGenerate_WritesReport(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "reports", ArtifactName("12345"))

	path, err := NewGenerator(out).Generate(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, out, path)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, "# Case Quality Audit Report")
	assert.Contains(t, text, "**Case Number:** 12345")
	assert.Contains(t, text, "| Initial Response | 4/5 | Prompt first reply. |")
	assert.Contains(t, text, "## Case Summary")
	assert.Contains(t, text, "### Overall Assessment")
	// Recommendations are renumbered from 1 regardless of model numbering.
	assert.Contains(t, text, "1. Escalate sooner")
	assert.Contains(t, text, "2. Link documentation")
	assert.Contains(t, text, "3. Follow up proactively")
	assert.Contains(t, text, "*Report generated on:")
}

func TestGenerate_NoCaseSummarySkipsSection(t *testing.T) {
	r := sampleReport()
	r.CaseSummary = ""
	out := filepath.Join(t.TempDir(), ArtifactName("1"))

	_, err := NewGenerator(out).Generate(r)
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "## Case Summary")
}

func TestGenerate_IncludesDetectedLanguage(t *testing.T) {
	r := sampleReport()
	r.CaseInfo.Language = "German"
	out := filepath.Join(t.TempDir(), ArtifactName("1"))

	_, err := NewGenerator(out).Generate(r)
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(content), "**Language:** German")
}

func TestGenerate_NoLanguageSkipsLine(t *testing.T) {
	out := filepath.Join(t.TempDir(), ArtifactName("1"))

	_, err := NewGenerator(out).Generate(sampleReport())
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "**Language:**")
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "case_99_audit.md", ArtifactName("99"))
}

func TestWrapText(t *testing.T) {
	wrapped := wrapText(strings.Repeat("word ", 40), 20)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), 20)
	}
	assert.Equal(t, "", wrapText("   ", 20))
}

func TestWrapText_CountsRunesNotBytes(t *testing.T) {
	// Four runes per word but five bytes; byte counting would break after
	// three words instead of four.
	wrapped := wrapText(strings.Repeat("wört ", 8), 20)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, utf8.RuneCountInString(line), 20)
	}
	assert.Equal(t, 1, strings.Count(wrapped, "\n"))
}

func TestTableCell_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", tableCell("a\n  b\tc"))
}
