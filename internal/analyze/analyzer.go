package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/caseops/caseaudit/internal/extract"
	"github.com/caseops/caseaudit/pkg/log"
)

// maxCaseContentChars caps how much raw case text goes into the prompt.
const maxCaseContentChars = 3000

// ChatClient is the slice of the LLM client the analyzer needs.
type ChatClient interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// Analyzer turns case text into an audit report through a single LLM call.
type Analyzer struct {
	client     ChatClient
	reportLang language.Tag
}

func NewAnalyzer(client ChatClient, reportLang language.Tag) *Analyzer {
	return &Analyzer{client: client, reportLang: reportLang}
}

// AnalyzeCase evaluates the support quality of one case and returns the audit
// report with ratings and per-category feedback.
func (a *Analyzer) AnalyzeCase(ctx context.Context, caseContent string, info extract.CaseInfo) (*AuditReport, error) {
	prompt := a.buildPrompt(caseContent, info)

	responseText, err := a.client.SimpleChat(ctx, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("audit analysis request: %w", err)
	}

	result, err := cleanJSONResponse(responseText)
	if err != nil {
		return nil, fmt.Errorf("audit analysis response: %w", err)
	}

	return buildReport(result, info), nil
}

func (a *Analyzer) buildPrompt(caseContent string, info extract.CaseInfo) string {
	if len(caseContent) > maxCaseContentChars {
		caseContent = caseContent[:maxCaseContentChars]
	}

	var sb strings.Builder
	sb.WriteString(`Please evaluate the quality of support for this TIBCO support case.
Analyze the case content below from a quality assurance perspective, focus on:

1. Initial Response - How timely and effective was the initial response?
2. Problem Diagnosis - How effective was the approach to diagnosing the issue?
3. Technical Accuracy - How accurate and relevant was the technical guidance provided?
4. Solution Quality - How effective was the solution provided?
5. Communication - How clear, professional, and timely was the communication?
6. Overall Experience - How would you rate the customer's overall experience?

Rate each category from 1-5 (5 being best), and provide brief feedback for each category.
Also provide an overall assessment, a short case summary, and list 3-5 specific
recommendations for improvement.

Format your recommendations as a numbered list and make them specific and actionable.
For example:
1. Be more proactive in follow-ups
2. Document steps taken in more detail
3. Include specific steps for the customer to troubleshoot
4. Escalate to engineering sooner when initial efforts aren't working
5. Provide documentation links with each response

Format your analysis as valid JSON like this:
{
  "ratings": {
    "initial_response": 3,
    "problem_diagnosis": 4,
    "technical_accuracy": 4,
    "solution_quality": 3,
    "communication": 3,
    "overall_experience": 3
  },
  "initial_response_feedback": "The initial response was prompt but could be improved by...",
  "problem_diagnosis_feedback": "The problem diagnosis was thorough and correctly identified that...",
  "technical_accuracy_feedback": "The technical analysis provided was mostly accurate...",
  "solution_feedback": "The solution was effective but took longer than necessary to...",
  "communication_feedback": "Communication was regular but could be enhanced by...",
  "overall_feedback": "Overall, this was a decent support case, but improvements could be made in...",
  "case_summary": "The customer hit X; support diagnosed Y and resolved it with Z.",
  "recommendations": "1. Improve the initial response by personalizing it more. 2. Provide clearer steps for diagnosis. 3. Follow up more proactively. 4. Include links to relevant documentation. 5. Escalate complex issues more quickly."
}

Ensure "recommendations" is a single string, not a list.
`)

	if a.reportLang != language.Und && a.reportLang != language.English {
		fmt.Fprintf(&sb, "\nWrite all feedback text in %s.\n", display.English.Languages().Name(a.reportLang))
	}

	fmt.Fprintf(&sb, "\nCase details:\nProduct: %s %s\nSubject: %s\n",
		info.ProductName, info.ProductVersion, info.Subject)
	if info.Language != "" {
		fmt.Fprintf(&sb, "Case language: %s\n", info.Language)
	}
	fmt.Fprintf(&sb, "\nCase contents:\n%s\n", caseContent)

	return sb.String()
}

var jsonObjectRe = regexp.MustCompile(`(?s)(\{.*\})`)
var unquotedKeyRe = regexp.MustCompile(`([{,])\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*:`)

// cleanJSONResponse strips markdown fences and repairs common formatting
// faults in model output before decoding it.
func cleanJSONResponse(text string) (map[string]any, error) {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return result, nil
	}

	if m := jsonObjectRe.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &result); err == nil {
			return result, nil
		}
	}

	cleaned := strings.ReplaceAll(text, `\"`, `"`)
	cleaned = unquotedKeyRe.ReplaceAllString(cleaned, `$1"$2":`)
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("parse model response as JSON: %w", err)
	}
	return result, nil
}

func buildReport(result map[string]any, info extract.CaseInfo) *AuditReport {
	ratings, _ := result["ratings"].(map[string]any)

	return &AuditReport{
		CaseInfo: info,
		Ratings: Ratings{
			InitialResponse:   ratingOrDefault(ratings, "initial_response"),
			ProblemDiagnosis:  ratingOrDefault(ratings, "problem_diagnosis"),
			TechnicalAccuracy: ratingOrDefault(ratings, "technical_accuracy"),
			SolutionQuality:   ratingOrDefault(ratings, "solution_quality"),
			Communication:     ratingOrDefault(ratings, "communication"),
			OverallExperience: ratingOrDefault(ratings, "overall_experience"),
		},
		InitialResponseFeedback:   stringField(result, "initial_response_feedback"),
		ProblemDiagnosisFeedback:  stringField(result, "problem_diagnosis_feedback"),
		TechnicalAccuracyFeedback: stringField(result, "technical_accuracy_feedback"),
		SolutionFeedback:          stringField(result, "solution_feedback"),
		CommunicationFeedback:     stringField(result, "communication_feedback"),
		OverallFeedback:           stringField(result, "overall_feedback"),
		CaseSummary:               stringField(result, "case_summary"),
		Recommendations:           recommendationsField(result),
	}
}

// ratingOrDefault returns the category score, defaulting to a neutral 3 when
// the model omitted, mistyped, or put it outside the 1-5 scale.
func ratingOrDefault(ratings map[string]any, key string) int {
	if ratings == nil {
		return 3
	}
	switch v := ratings[key].(type) {
	case float64:
		return validRating(int(v), key)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return validRating(n, key)
		}
	}
	log.Debug("Rating %q missing from model output, defaulting to 3", key)
	return 3
}

func validRating(n int, key string) int {
	if n < 1 || n > 5 {
		log.Debug("Rating %q out of range (%d), defaulting to 3", key, n)
		return 3
	}
	return n
}

func stringField(result map[string]any, key string) string {
	if v, ok := result[key].(string); ok {
		return v
	}
	return ""
}

// recommendationsField tolerates list-shaped recommendations by joining them
// into the single string the report contract requires.
func recommendationsField(result map[string]any) string {
	switch v := result["recommendations"].(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ". ")
	}
	return ""
}
