// Package docextract provides document text extraction using Apache Tika.
// Extracted text is merged into a single turn's prompt as reference
// material; it is never stored as a standalone turn.
package docextract

import (
	"context"
)

// Supported MIME types for text extraction.
var SupportedMimeTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/rtf",
	"text/plain",
	"text/rtf",
}

// Extractor turns a binary document into text. Implementations must honor
// context cancellation; extraction failure aborts the turn that carried the
// document.
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
}
