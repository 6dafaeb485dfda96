package analyze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/caseops/caseaudit/internal/extract"
)

type stubChat struct {
	response string
	err      error
	prompt   string
}

func (s *stubChat) SimpleChat(_ context.Context, prompt, _ string) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

const wellFormedResponse = `{
  "ratings": {
    "initial_response": 4,
    "problem_diagnosis": 5,
    "technical_accuracy": 4,
    "solution_quality": 3,
    "communication": 4,
    "overall_experience": 4
  },
  "initial_response_feedback": "Prompt first reply.",
  "problem_diagnosis_feedback": "Root cause found quickly.",
  "technical_accuracy_feedback": "Guidance was accurate.",
  "solution_feedback": "Workaround, then fix.",
  "communication_feedback": "Regular updates.",
  "overall_feedback": "Solid case handling.",
  "case_summary": "Startup crash traced to classpath conflict.",
  "recommendations": "1. Escalate sooner. 2. Link docs."
}`

func TestAnalyzeCase_WellFormedResponse(t *testing.T) {
	chat := &stubChat{response: wellFormedResponse}
	a := NewAnalyzer(chat, language.English)

	info := extract.CaseInfo{CaseNumber: "12345", ProductName: "TIBCO BusinessWorks", Subject: "Startup crash"}
	report, err := a.AnalyzeCase(context.Background(), "case text", info)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Ratings.InitialResponse)
	assert.Equal(t, 5, report.Ratings.ProblemDiagnosis)
	assert.Equal(t, "Prompt first reply.", report.InitialResponseFeedback)
	assert.Equal(t, "Startup crash traced to classpath conflict.", report.CaseSummary)
	assert.Equal(t, "1. Escalate sooner. 2. Link docs.", report.Recommendations)
	assert.Equal(t, "12345", report.CaseInfo.CaseNumber)

	assert.Contains(t, chat.prompt, "Startup crash")
	assert.Contains(t, chat.prompt, "TIBCO BusinessWorks")
}

func TestAnalyzeCase_FencedResponse(t *testing.T) {
	chat := &stubChat{response: "```json\n" + wellFormedResponse + "\n```"}
	a := NewAnalyzer(chat, language.English)

	report, err := a.AnalyzeCase(context.Background(), "case text", extract.CaseInfo{CaseNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Ratings.SolutionQuality)
}

func TestAnalyzeCase_ChatterAroundJSON(t *testing.T) {
	chat := &stubChat{response: "Here is my evaluation:\n" + wellFormedResponse + "\nLet me know if you need more."}
	a := NewAnalyzer(chat, language.English)

	report, err := a.AnalyzeCase(context.Background(), "case text", extract.CaseInfo{CaseNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, "Solid case handling.", report.OverallFeedback)
}

func TestAnalyzeCase_ListRecommendationsJoined(t *testing.T) {
	chat := &stubChat{response: `{
		"ratings": {"initial_response": 2},
		"recommendations": ["Escalate sooner", "Link docs"]
	}`}
	a := NewAnalyzer(chat, language.English)

	report, err := a.AnalyzeCase(context.Background(), "case text", extract.CaseInfo{CaseNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, "Escalate sooner. Link docs", report.Recommendations)
	// Missing ratings default to 3.
	assert.Equal(t, 2, report.Ratings.InitialResponse)
	assert.Equal(t, 3, report.Ratings.Communication)
}

func TestAnalyzeCase_OutOfRangeRatingsDefaultToNeutral(t *testing.T) {
	chat := &stubChat{response: `{
		"ratings": {"initial_response": 42, "problem_diagnosis": 0, "communication": "-1"}
	}`}
	a := NewAnalyzer(chat, language.English)

	report, err := a.AnalyzeCase(context.Background(), "case text", extract.CaseInfo{CaseNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Ratings.InitialResponse)
	assert.Equal(t, 3, report.Ratings.ProblemDiagnosis)
	assert.Equal(t, 3, report.Ratings.Communication)
}

func TestAnalyzeCase_UnparseableResponse(t *testing.T) {
	chat := &stubChat{response: "I cannot rate this case."}
	a := NewAnalyzer(chat, language.English)

	_, err := a.AnalyzeCase(context.Background(), "case text", extract.CaseInfo{CaseNumber: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON")
}

func TestBuildPrompt_TruncatesContentAndSetsLanguage(t *testing.T) {
	a := NewAnalyzer(nil, language.French)

	long := make([]byte, maxCaseContentChars+500)
	for i := range long {
		long[i] = 'x'
	}
	prompt := a.buildPrompt(string(long), extract.CaseInfo{})

	assert.LessOrEqual(t, len(prompt), maxCaseContentChars+2500)
	assert.Contains(t, prompt, "French")
}

func TestBuildPrompt_IncludesDetectedCaseLanguage(t *testing.T) {
	a := NewAnalyzer(nil, language.English)

	prompt := a.buildPrompt("case text", extract.CaseInfo{Language: "German"})
	assert.Contains(t, prompt, "Case language: German")

	prompt = a.buildPrompt("case text", extract.CaseInfo{})
	assert.NotContains(t, prompt, "Case language:")
}

func TestCleanJSONResponse_UnquotedKeys(t *testing.T) {
	got, err := cleanJSONResponse(`{ratings: {"initial_response": 1}, overall_feedback: "ok"}`)
	require.NoError(t, err)
	assert.Equal(t, "ok", got["overall_feedback"])
}
