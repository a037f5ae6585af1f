// Package translate provides machine translation between chat languages.
// Translation is best-effort throughout the pipeline: callers keep the
// original text when a translation call fails.
package translate

import (
	"context"
)

// Translator translates text between two language codes.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
