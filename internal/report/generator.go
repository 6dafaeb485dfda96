package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/caseops/caseaudit/internal/analyze"
)

// ArtifactName returns the report file name for a case.
func ArtifactName(caseNumber string) string {
	return fmt.Sprintf("case_%s_audit.md", caseNumber)
}

// Generator renders an audit report to a markdown file.
type Generator struct {
	outputPath string
}

func NewGenerator(outputPath string) *Generator {
	return &Generator{outputPath: outputPath}
}

var leadingNumberRe = regexp.MustCompile(`\d+[.)\s]*`)

// Generate writes the markdown report and returns its path.
func (g *Generator) Generate(report *analyze.AuditReport) (string, error) {
	md := make([]string, 0, 64)

	md = append(md, "# Case Quality Audit Report\n")

	md = append(md, "## Case Information\n")
	md = append(md, fmt.Sprintf("**Case Number:** %s  ", report.CaseInfo.CaseNumber))
	md = append(md, fmt.Sprintf("**Customer:** %s  ", report.CaseInfo.CustomerName))
	md = append(md, fmt.Sprintf("**Product:** %s %s  ", report.CaseInfo.ProductName, report.CaseInfo.ProductVersion))
	md = append(md, fmt.Sprintf("**Severity:** %s  ", report.CaseInfo.Severity))
	md = append(md, fmt.Sprintf("**Status:** %s  ", report.CaseInfo.Status))
	if report.CaseInfo.Language != "" {
		md = append(md, fmt.Sprintf("**Language:** %s  ", report.CaseInfo.Language))
	}
	md = append(md, fmt.Sprintf("**Created:** %s  ", report.CaseInfo.DateCreated.Format("2006-01-02 15:04:05")))
	md = append(md, fmt.Sprintf("**Closed:** %s  ", report.CaseInfo.DateClosed.Format("2006-01-02 15:04:05")))
	md = append(md, fmt.Sprintf("**Subject:** %s\n", wrapText(report.CaseInfo.Subject, 80)))

	if report.CaseSummary != "" {
		md = append(md, "\n## Case Summary\n")
		md = append(md, "*Quick highlights of the case:*\n")
		md = append(md, wrapText(report.CaseSummary, 80))
		md = append(md, "")
	}

	md = append(md, "\n## Quality Ratings\n")
	md = append(md, "| Category | Rating | Description |")
	md = append(md, "| --- | :---: | --- |")
	md = append(md, fmt.Sprintf("| Initial Response | %d/5 | %s |", report.Ratings.InitialResponse, tableCell(report.InitialResponseFeedback)))
	md = append(md, fmt.Sprintf("| Problem Diagnosis | %d/5 | %s |", report.Ratings.ProblemDiagnosis, tableCell(report.ProblemDiagnosisFeedback)))
	md = append(md, fmt.Sprintf("| Technical Accuracy | %d/5 | %s |", report.Ratings.TechnicalAccuracy, tableCell(report.TechnicalAccuracyFeedback)))
	md = append(md, fmt.Sprintf("| Solution Quality | %d/5 | %s |", report.Ratings.SolutionQuality, tableCell(report.SolutionFeedback)))
	md = append(md, fmt.Sprintf("| Communication | %d/5 | %s |", report.Ratings.Communication, tableCell(report.CommunicationFeedback)))
	md = append(md, fmt.Sprintf("| Overall Experience | %d/5 | %s |\n", report.Ratings.OverallExperience, tableCell(report.OverallFeedback)))

	md = append(md, "\n## Detailed Feedback\n")
	sections := []struct {
		title string
		body  string
	}{
		{"Initial Response", report.InitialResponseFeedback},
		{"Problem Diagnosis", report.ProblemDiagnosisFeedback},
		{"Technical Accuracy", report.TechnicalAccuracyFeedback},
		{"Solution Quality", report.SolutionFeedback},
		{"Communication", report.CommunicationFeedback},
		{"Overall Assessment", report.OverallFeedback},
	}
	for _, section := range sections {
		md = append(md, fmt.Sprintf("### %s\n", section.title))
		md = append(md, wrapText(section.body, 80))
		md = append(md, "")
	}

	md = append(md, "\n## Recommendations\n")
	for i, rec := range splitRecommendations(report.Recommendations) {
		md = append(md, fmt.Sprintf("%d. %s", i+1, rec))
	}

	md = append(md, fmt.Sprintf("\n\n*Report generated on: %s*", time.Now().Format("2006-01-02 15:04:05")))

	if err := os.MkdirAll(filepath.Dir(g.outputPath), 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(g.outputPath, []byte(strings.Join(md, "\n")), 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", g.outputPath, err)
	}
	return g.outputPath, nil
}

// splitRecommendations strips any numbering the model produced and yields one
// entry per recommendation so they can be renumbered consistently.
func splitRecommendations(recommendations string) []string {
	clean := leadingNumberRe.ReplaceAllString(recommendations, "")
	parts := strings.Split(clean, ".")
	ret := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			ret = append(ret, part)
		}
	}
	return ret
}

// wrapText wraps text at the given width, preserving words. Width is counted
// in runes so non-ASCII report languages wrap at the same visual width.
func wrapText(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var sb strings.Builder
	lineLen := 0
	for i, word := range words {
		wordLen := utf8.RuneCountInString(word)
		if i > 0 {
			if lineLen+1+wordLen > width {
				sb.WriteByte('\n')
				lineLen = 0
			} else {
				sb.WriteByte(' ')
				lineLen++
			}
		}
		sb.WriteString(word)
		lineLen += wordLen
	}
	return sb.String()
}

// tableCell normalizes feedback for a markdown table cell: single line,
// collapsed whitespace.
func tableCell(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
