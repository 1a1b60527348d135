package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medclaims-analyzer-server/internal/domain"
)

type stubExtractor struct {
	failFor map[string]bool
}

func (s *stubExtractor) Extract(ctx context.Context, fileName string, payload []byte) (string, error) {
	if s.failFor[fileName] {
		return "", errors.New("unreadable scan")
	}
	return string(payload), nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestCanonicalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "windows line endings",
			input:    "line one\r\nline two\r\n",
			expected: "line one\nline two",
		},
		{
			name:     "collapses space runs",
			input:    "Patient   ID:    P123",
			expected: "Patient ID: P123",
		},
		{
			name:     "collapses blank line runs",
			input:    "a\n\n\n\n\nb",
			expected: "a\n\nb",
		},
		{
			name:     "trims trailing whitespace per line",
			input:    "a   \nb\t\t\n",
			expected: "a\nb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalizeText(tt.input))
		})
	}
}

func TestNormalizeEmptyClaim(t *testing.T) {
	n := NewNormalizer(&stubExtractor{}, testLogger())
	_, err := n.Normalize(context.Background(), "CLM-1", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyClaim)
}

func TestNormalizeRetainsFailedDocument(t *testing.T) {
	n := NewNormalizer(&stubExtractor{failFor: map[string]bool{"scan.pdf": true}}, testLogger())

	docs, err := n.Normalize(context.Background(), "CLM-1", []RawDocument{
		{FileName: "bill.txt", Type: domain.DocumentBill, Payload: []byte("Total Amount: 1200")},
		{FileName: "scan.pdf", Type: domain.DocumentLabReport, Payload: []byte{0xff}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "Total Amount: 1200", docs[0].RawText)
	assert.Empty(t, docs[1].RawText)
	assert.Equal(t, domain.DocumentLabReport, docs[1].Type)
	for _, d := range docs {
		assert.NotEmpty(t, d.ID)
		assert.Equal(t, "CLM-1", d.ClaimID)
	}
}

func TestNormalizeAllDocumentsUnreadableFails(t *testing.T) {
	n := NewNormalizer(&stubExtractor{failFor: map[string]bool{"a.pdf": true, "b.pdf": true}}, testLogger())

	_, err := n.Normalize(context.Background(), "CLM-2", []RawDocument{
		{FileName: "a.pdf", Payload: []byte{0xff}},
		{FileName: "b.pdf", Payload: []byte{0xfe}},
	})
	assert.ErrorIs(t, err, domain.ErrNoReadableDocuments)
}

func TestNormalizeClassifiesByFileName(t *testing.T) {
	n := NewNormalizer(&stubExtractor{}, testLogger())

	docs, err := n.Normalize(context.Background(), "CLM-3", []RawDocument{
		{FileName: "hospital_bill.txt", Payload: []byte("x")},
		{FileName: "discharge_summary.txt", Payload: []byte("x")},
		{FileName: "treatment_plan.txt", Payload: []byte("x")},
		{FileName: "notes.txt", Payload: []byte("x")},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentBill, docs[0].Type)
	assert.Equal(t, domain.DocumentDischarge, docs[1].Type)
	assert.Equal(t, domain.DocumentTreatmentPlan, docs[2].Type)
	assert.Equal(t, domain.DocumentOther, docs[3].Type)
}
