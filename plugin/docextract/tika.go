package docextract

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"context"

	"github.com/pkg/errors"
)

// Config holds the Tika client configuration.
type Config struct {
	// ServerURL is the URL of the Tika server (e.g. http://localhost:9998).
	ServerURL string
	// Timeout is the HTTP timeout for Tika server requests.
	Timeout time.Duration
}

// DefaultConfig returns the default extraction configuration.
func DefaultConfig() *Config {
	return &Config{
		ServerURL: "http://localhost:9998",
		Timeout:   30 * time.Second,
	}
}

// Client extracts document text through a Tika server.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a new Tika extraction client.
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

// Extract sends the document to the Tika server and returns plain text.
func (c *Client) Extract(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty document")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !c.IsSupported(contentType) {
		return "", errors.Errorf("unsupported content type: %s", contentType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.config.ServerURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "tika server request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.Errorf("tika server returned status %d: %s", resp.StatusCode, string(body))
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read extraction response")
	}

	extracted := strings.TrimSpace(string(text))
	if extracted == "" {
		return "", errors.New("document contained no extractable text")
	}
	return extracted, nil
}

// IsSupported checks if a MIME type is supported.
func (c *Client) IsSupported(contentType string) bool {
	// Strip parameters such as "; charset=utf-8".
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(contentType)
	for _, supported := range SupportedMimeTypes {
		if strings.EqualFold(contentType, supported) {
			return true
		}
	}
	return false
}

var _ Extractor = (*Client)(nil)
