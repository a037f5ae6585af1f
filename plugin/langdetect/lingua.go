package langdetect

import (
	"context"
	"strings"

	"github.com/pemistahl/lingua-go"
	"github.com/pkg/errors"
)

// detectionLanguages bounds the lingua model set to the languages the
// service can actually converse in; loading all models is slow and makes
// detection less decisive.
var detectionLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
	lingua.Russian,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.Arabic,
	lingua.Hindi,
}

// LinguaDetector implements Detector with the lingua-go statistical models.
type LinguaDetector struct {
	detector lingua.LanguageDetector
}

// NewLinguaDetector builds a detector over the supported language set.
func NewLinguaDetector() *LinguaDetector {
	return &LinguaDetector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectionLanguages...).
			WithPreloadedLanguageModels().
			Build(),
	}
}

// Detect returns the most confident language for the text.
func (d *LinguaDetector) Detect(_ context.Context, text string) (Detection, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Detection{}, errors.New("empty text")
	}

	values := d.detector.ComputeLanguageConfidenceValues(text)
	if len(values) == 0 {
		return Detection{}, errors.New("no language detected")
	}

	top := values[0]
	return Detection{
		Language:   strings.ToLower(top.Language().IsoCode639_1().String()),
		Confidence: top.Value(),
	}, nil
}

var _ Detector = (*LinguaDetector)(nil)
