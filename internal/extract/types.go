package extract

import "time"

// CaseInfo holds the structured fields pulled out of a support-case PDF.
type CaseInfo struct {
	CaseNumber     string    `json:"case_number"`
	ProductVersion string    `json:"product_version"`
	ProductName    string    `json:"product_name"`
	CustomerName   string    `json:"customer_name"`
	Severity       string    `json:"severity"`
	Status         string    `json:"status"`
	Subject        string    `json:"subject"`
	CaseOwner      string    `json:"case_owner"`
	DateCreated    time.Time `json:"date_created"`
	DateClosed     time.Time `json:"date_closed"`
	// Language is the detected natural language of the case text, e.g. "English".
	Language string `json:"language,omitempty"`
}
