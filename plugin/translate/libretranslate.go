package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// Config holds the translation client configuration.
type Config struct {
	// ServerURL is a LibreTranslate-compatible endpoint (e.g. http://localhost:5000).
	ServerURL string
	// APIKey is optional; required by hosted instances.
	APIKey string
	// Timeout is the HTTP timeout for translation requests.
	Timeout time.Duration
}

// DefaultConfig returns the default translation configuration.
func DefaultConfig() *Config {
	return &Config{
		ServerURL: "http://localhost:5000",
		Timeout:   15 * time.Second,
	}
}

// Client translates text through a LibreTranslate-compatible server.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new translation client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

// Translate converts text from sourceLang to targetLang.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if text == "" {
		return "", nil
	}
	if sourceLang == targetLang {
		return text, nil
	}

	payload, err := json.Marshal(translateRequest{
		Q:      text,
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
		APIKey: c.config.APIKey,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "translation request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.Errorf("translation server returned status %d: %s", resp.StatusCode, string(body))
	}

	var result translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Wrap(err, "failed to decode translation response")
	}
	if result.Error != "" {
		return "", errors.Errorf("translation server error: %s", result.Error)
	}
	if result.TranslatedText == "" {
		return "", errors.New("translation server returned empty text")
	}
	return result.TranslatedText, nil
}

var _ Translator = (*Client)(nil)
