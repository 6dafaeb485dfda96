package analyze

import "github.com/caseops/caseaudit/internal/extract"

// Ratings are the 1-5 scores for each audited category.
type Ratings struct {
	InitialResponse   int `json:"initial_response"`
	ProblemDiagnosis  int `json:"problem_diagnosis"`
	TechnicalAccuracy int `json:"technical_accuracy"`
	SolutionQuality   int `json:"solution_quality"`
	Communication     int `json:"communication"`
	OverallExperience int `json:"overall_experience"`
}

// AuditReport is the full quality assessment for one support case.
type AuditReport struct {
	CaseInfo extract.CaseInfo `json:"case_info"`
	Ratings  Ratings          `json:"ratings"`

	InitialResponseFeedback   string `json:"initial_response_feedback"`
	ProblemDiagnosisFeedback  string `json:"problem_diagnosis_feedback"`
	TechnicalAccuracyFeedback string `json:"technical_accuracy_feedback"`
	SolutionFeedback          string `json:"solution_feedback"`
	CommunicationFeedback     string `json:"communication_feedback"`
	OverallFeedback           string `json:"overall_feedback"`

	// Recommendations is a single string; list-shaped model output is joined.
	Recommendations string `json:"recommendations"`
	// CaseSummary is a quick highlight of the issue and its resolution.
	CaseSummary string `json:"case_summary,omitempty"`
}
