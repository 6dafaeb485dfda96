package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCaseText = `Case Number: 12345678
Date/Time Created 12-03-2024 01:36:36
Date/Time Closed 12-10-2024 18:05:12
Product Name TIBCO BusinessWorks Container Edition
Version 2.9.1
Customer: Acme Logistics GmbH
Severity: Level 2 - Urgent
Status: Closed
Case Owner: J. Martinez
Subject Application crashes on startup after upgrading to 2.9.1
The customer reported that the application fails to start after the
upgrade. Engineering identified a classpath conflict and provided a
patched container image which resolved the issue.`

func TestParseCaseInfo_AllFields(t *testing.T) {
	info, err := parseCaseInfo(sampleCaseText)
	require.NoError(t, err)

	assert.Equal(t, "12345678", info.CaseNumber)
	assert.Equal(t, "TIBCO BusinessWorks Container Edition", info.ProductName)
	assert.Equal(t, "2.9.1", info.ProductVersion)
	assert.Equal(t, "Acme Logistics GmbH", info.CustomerName)
	assert.Equal(t, "Level 2 - Urgent", info.Severity)
	assert.Equal(t, "Closed", info.Status)
	assert.Equal(t, "J. Martinez", info.CaseOwner)
	assert.Equal(t, "Application crashes on startup after upgrading to 2.9.1", info.Subject)

	wantCreated := time.Date(2024, 12, 3, 1, 36, 36, 0, time.UTC)
	assert.Equal(t, wantCreated, info.DateCreated)
	wantClosed := time.Date(2024, 12, 10, 18, 5, 12, 0, time.UTC)
	assert.Equal(t, wantClosed, info.DateClosed)

	assert.Equal(t, "English", info.Language)
}

func TestParseCaseInfo_MissingCaseNumber(t *testing.T) {
	text := strings.Replace(sampleCaseText, "Case Number: 12345678", "", 1)

	info, err := parseCaseInfo(text)
	require.ErrorIs(t, err, ErrCaseNumberNotFound)

	// Partial result is still usable.
	assert.Empty(t, info.CaseNumber)
	assert.Equal(t, "Acme Logistics GmbH", info.CustomerName)
}

func TestParseCaseInfo_OverlongProductNameTruncated(t *testing.T) {
	text := `Case Number: 99
Product: TIBCO BusinessWorks Container Edition running in production Contact john@example.com with many extra fields that spill over the product line
Severity: 3`

	info, err := parseCaseInfo(text)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(info.ProductName), 50)
	assert.Contains(t, info.ProductName, "TIBCO")
}

func TestParseDate_Formats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "dash datetime",
			input: "12-03-2024 01:36:36",
			want:  time.Date(2024, 12, 3, 1, 36, 36, 0, time.UTC),
		},
		{
			name:  "dash date only",
			input: "5-7-2023",
			want:  time.Date(2023, 5, 7, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "iso datetime",
			input: "2024-01-15 10:30:00",
			want:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "slash date",
			input: "01/15/2024",
			want:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDate(tt.input))
		})
	}
}

func TestParseDate_UnparseableFallsBackToNow(t *testing.T) {
	before := time.Now()
	got := parseDate("next tuesday maybe")
	assert.False(t, got.Before(before.Add(-time.Second)))
}

func TestValueAfterColon(t *testing.T) {
	assert.Equal(t, "Closed", valueAfterColon("Status: Closed"))
	assert.Equal(t, "10:30:00", valueAfterColon("Time: 10:30:00"))
	assert.Equal(t, "", valueAfterColon("no colon here"))
}
