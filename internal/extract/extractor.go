package extract

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/ledongthuc/pdf"

	"github.com/caseops/caseaudit/pkg/log"
)

// ErrCaseNumberNotFound is returned when the PDF text carries no recognizable
// case number. The submission path treats this as non-fatal: the job still
// runs and extraction is retried during processing.
var ErrCaseNumberNotFound = errors.New("case number not found in document")

var (
	caseNumberRe  = regexp.MustCompile(`(?i)Case Number:?\s*(\d+)`)
	dateCreatedRe = regexp.MustCompile(`(?i)Date/Time Created\s+(\d{1,2}-\d{1,2}-\d{4}\s+\d{1,2}:\d{1,2}:\d{1,2})`)
	dateClosedRe  = regexp.MustCompile(`(?i)Date/Time Closed\s+(\d{1,2}-\d{1,2}-\d{4}\s+\d{1,2}:\d{1,2}:\d{1,2})`)
	productNameRe = regexp.MustCompile(`Product Name\s+([^\n]+)`)
	productRe     = regexp.MustCompile(`(?i)Product:?\s*([^:]+)`)
	versionRe     = regexp.MustCompile(`Version\s+([0-9.]+)`)
	subjectLineRe = regexp.MustCompile(`Subject\s+(Application[^\n]+)`)
	subjectRe     = regexp.MustCompile(`(?is)Subject:?\s*(.+?)(?:\n\w+:|$)`)
	vendorNameRe  = regexp.MustCompile(`TIBCO\s+[\w\s]+(?:Edition|Container|Enterprise)`)
	splitFieldRe  = regexp.MustCompile(`\s+(?:Contact|Email|Customer)`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Extractor reads a support-case PDF and produces plain text and structured
// case fields.
type Extractor struct {
	pdfPath string
}

func NewExtractor(pdfPath string) *Extractor {
	return &Extractor{pdfPath: pdfPath}
}

// Text extracts all text from the PDF file.
func (e *Extractor) Text() (string, error) {
	f, r, err := pdf.Open(e.pdfPath)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", e.pdfPath, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text from pdf %s: %w", e.pdfPath, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", e.pdfPath, err)
	}
	return buf.String(), nil
}

// CaseInfo extracts and structures case information from the PDF.
// Missing optional fields are left empty; a missing case number is reported
// as ErrCaseNumberNotFound alongside the partially filled result.
func (e *Extractor) CaseInfo() (CaseInfo, error) {
	text, err := e.Text()
	if err != nil {
		return CaseInfo{}, err
	}
	return parseCaseInfo(text)
}

func parseCaseInfo(text string) (CaseInfo, error) {
	now := time.Now()
	info := CaseInfo{
		DateCreated: now,
		DateClosed:  now,
	}

	if m := caseNumberRe.FindStringSubmatch(text); m != nil {
		info.CaseNumber = strings.TrimSpace(m[1])
	}
	if m := dateCreatedRe.FindStringSubmatch(text); m != nil {
		info.DateCreated = parseDate(m[1])
	}
	if m := dateClosedRe.FindStringSubmatch(text); m != nil {
		info.DateClosed = parseDate(m[1])
	}

	parseProduct(text, &info)
	parseSubject(text, &info)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.Contains(line, "Customer") && info.CustomerName == "":
			if v := valueAfterColon(line); len(v) > 1 {
				info.CustomerName = v
			}
		case strings.Contains(line, "Severity") && info.Severity == "":
			if v := valueAfterColon(line); v != "" {
				info.Severity = v
			}
		case strings.Contains(line, "Status") && info.Status == "":
			if v := valueAfterColon(line); v != "" {
				info.Status = v
			}
		case strings.Contains(line, "Case Owner") && info.CaseOwner == "":
			if v := valueAfterColon(line); len(v) > 1 {
				info.CaseOwner = v
			}
		}
	}

	if detected := whatlanggo.Detect(text); detected.IsReliable() {
		info.Language = detected.Lang.String()
	}

	if info.CaseNumber == "" {
		return info, ErrCaseNumberNotFound
	}
	return info, nil
}

func parseProduct(text string, info *CaseInfo) {
	if m := productNameRe.FindStringSubmatch(text); m != nil {
		info.ProductName = strings.TrimSpace(m[1])
	} else if m := productRe.FindStringSubmatch(text); m != nil {
		full := strings.TrimSpace(m[1])
		// Cut off trailing contact/email fields that bleed into the match.
		if loc := splitFieldRe.FindStringIndex(full); loc != nil {
			full = strings.TrimSpace(full[:loc[0]])
		}
		info.ProductName = full
		if vm := versionRe.FindStringSubmatch(full); vm != nil {
			info.ProductVersion = strings.TrimSpace(vm[1])
		}
	}

	// Overlong product names usually mean the regex swallowed neighboring
	// fields; fall back to the vendor product phrase or a generic name.
	if len(info.ProductName) > 50 {
		if m := vendorNameRe.FindString(info.ProductName); m != "" {
			info.ProductName = strings.TrimSpace(m)
		} else {
			info.ProductName = "TIBCO BusinessWorks"
		}
	}

	if info.ProductVersion == "" {
		if m := versionRe.FindStringSubmatch(text); m != nil {
			info.ProductVersion = strings.TrimSpace(m[1])
		}
	}
}

func parseSubject(text string, info *CaseInfo) {
	if m := subjectLineRe.FindStringSubmatch(text); m != nil {
		info.Subject = strings.TrimSpace(m[1])
		return
	}
	m := subjectRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	subject := whitespaceRe.ReplaceAllString(strings.TrimSpace(m[1]), " ")
	if len(subject) > 100 {
		if idx := strings.IndexAny(subject, ".!?"); idx > 20 {
			subject = subject[:idx+1]
		} else {
			subject = subject[:100] + "..."
		}
	}
	info.Subject = subject
}

// valueAfterColon extracts the value after the first colon, handling values
// that themselves contain colons.
func valueAfterColon(line string) string {
	parts := strings.SplitN(line, ":", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

var dateFormats = []string{
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

var (
	dateTimeRe = regexp.MustCompile(`(\d{1,2}-\d{1,2}-\d{4}\s+\d{1,2}:\d{1,2}:\d{1,2})`)
	dateOnlyRe = regexp.MustCompile(`(\d{1,2}-\d{1,2}-\d{4})`)
)

// parseDate handles the date formats found in case PDFs, falling back to the
// current time when nothing matches.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now()
	}

	if m := dateTimeRe.FindStringSubmatch(s); m != nil {
		if t, err := time.Parse("1-2-2006 15:4:5", m[1]); err == nil {
			return t
		}
	}
	if m := dateOnlyRe.FindStringSubmatch(s); m != nil {
		if t, err := time.Parse("1-2-2006", m[1]); err == nil {
			return t
		}
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	log.Warn("Could not parse date %q, using current time", s)
	return time.Now()
}
