// Package ingest provides text extraction for submitted claim documents.
// OCR-backed extractors implement the same interface; this package ships
// the plain-text implementation used for text uploads and tests.
package ingest

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// maxDocumentBytes bounds the accepted payload size.
const maxDocumentBytes = 10 << 20

// PlainTextExtractor treats the payload as UTF-8 text.
type PlainTextExtractor struct{}

// NewPlainTextExtractor creates a plain-text extractor.
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// Extract returns the payload as a string. It rejects empty, oversized and
// non-UTF-8 payloads; callers treat the error as a degraded document.
func (e *PlainTextExtractor) Extract(ctx context.Context, fileName string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("document %s is empty", fileName)
	}
	if len(payload) > maxDocumentBytes {
		return "", fmt.Errorf("document %s exceeds %d bytes", fileName, maxDocumentBytes)
	}
	if !utf8.Valid(payload) {
		return "", fmt.Errorf("document %s is not valid UTF-8 text", fileName)
	}
	return string(payload), nil
}
