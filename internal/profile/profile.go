package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where parley stores its own data
	DSN string
	// Driver is the database driver (sqlite, postgres or memory)
	Driver string
	// Version is the current version of server
	Version string

	// LLM provider configuration (OpenAI-compatible endpoint).
	LLMBaseURL string // PARLEY_LLM_BASE_URL (default: https://api.openai.com/v1)
	LLMAPIKey  string // PARLEY_LLM_API_KEY
	// DefaultModel is the registry id used when a request supplies none.
	DefaultModel string // PARLEY_DEFAULT_MODEL (default: gpt-4o-mini)
	// SystemPrompt is prepended to every constructed prompt.
	SystemPrompt string // PARLEY_SYSTEM_PROMPT

	// DefaultLanguage is the preferred language for new conversations.
	DefaultLanguage string // PARLEY_DEFAULT_LANGUAGE (default: en)
	// DetectConfidence is the minimum detector confidence required before a
	// turn is translated into the conversation's preferred language.
	DetectConfidence float64 // PARLEY_DETECT_CONFIDENCE (default: 0.65)

	// TikaServerURL is the Apache Tika endpoint for document extraction.
	TikaServerURL string // PARLEY_TIKA_URL (default: http://localhost:9998)
	// TranslateServerURL is the LibreTranslate-compatible endpoint.
	TranslateServerURL string // PARLEY_TRANSLATE_URL (default: http://localhost:5000)

	// Per-stage timeouts for blocking pipeline stages.
	DocExtractTimeout time.Duration // PARLEY_DOCEXTRACT_TIMEOUT (default: 30s)
	TranslateTimeout  time.Duration // PARLEY_TRANSLATE_TIMEOUT (default: 15s)
	DispatchTimeout   time.Duration // PARLEY_DISPATCH_TIMEOUT (default: 2m)

	// MaxConcurrentDispatches bounds in-flight model calls process-wide.
	MaxConcurrentDispatches int64 // PARLEY_MAX_DISPATCHES (default: 8)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Validate checks the profile and fills derived defaults.
func (p *Profile) Validate() error {
	switch p.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return errors.Errorf("unsupported database driver: %s", p.Driver)
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres driver")
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		if p.Data == "" {
			p.Data = "."
		}
		absData, err := filepath.Abs(p.Data)
		if err != nil {
			return errors.Wrap(err, "failed to resolve data directory")
		}
		if fi, err := os.Stat(absData); err != nil || !fi.IsDir() {
			return errors.Errorf("data directory does not exist: %s", absData)
		}
		p.Data = absData
		p.DSN = fmt.Sprintf("%s/parley_%s.db", p.Data, p.Mode)
	}

	if p.DefaultLanguage == "" {
		p.DefaultLanguage = "en"
	}
	if p.DefaultModel == "" {
		p.DefaultModel = "gpt-4o-mini"
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = "You are a helpful assistant. Answer clearly and concisely, in the language of the conversation."
	}
	if p.DetectConfidence <= 0 || p.DetectConfidence > 1 {
		p.DetectConfidence = 0.65
	}
	if p.DocExtractTimeout <= 0 {
		p.DocExtractTimeout = 30 * time.Second
	}
	if p.TranslateTimeout <= 0 {
		p.TranslateTimeout = 15 * time.Second
	}
	if p.DispatchTimeout <= 0 {
		p.DispatchTimeout = 2 * time.Minute
	}
	if p.MaxConcurrentDispatches <= 0 {
		p.MaxConcurrentDispatches = 8
	}

	return nil
}
