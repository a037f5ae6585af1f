// Package langdetect provides language detection for chat turns.
package langdetect

import (
	"context"
)

// Detection is a detected language with the detector's confidence in it.
type Detection struct {
	// Language is the ISO 639-1 code, e.g. "en".
	Language   string
	Confidence float64
}

// Detector identifies the language a text was written in. Detection is
// advisory: callers fall back to the conversation's preferred language when
// detection fails or confidence is too low.
type Detector interface {
	Detect(ctx context.Context, text string) (Detection, error)
}
