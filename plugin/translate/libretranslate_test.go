package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req translateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "hello", req.Q)
			assert.Equal(t, "en", req.Source)
			assert.Equal(t, "fr", req.Target)

			json.NewEncoder(w).Encode(translateResponse{TranslatedText: "bonjour"})
		}))
		defer server.Close()

		client := NewClient(&Config{ServerURL: server.URL, Timeout: 5 * time.Second})
		got, err := client.Translate(ctx, "hello", "en", "fr")
		require.NoError(t, err)
		assert.Equal(t, "bonjour", got)
	})

	t.Run("SameLanguagePassthrough", func(t *testing.T) {
		client := NewClient(nil)
		got, err := client.Translate(ctx, "hello", "en", "en")
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
	})

	t.Run("EmptyTextPassthrough", func(t *testing.T) {
		client := NewClient(nil)
		got, err := client.Translate(ctx, "", "en", "fr")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(&Config{ServerURL: server.URL, Timeout: 5 * time.Second})
		_, err := client.Translate(ctx, "hello", "en", "fr")
		assert.Error(t, err)
	})

	t.Run("ErrorPayload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(translateResponse{Error: "unsupported language pair"})
		}))
		defer server.Close()

		client := NewClient(&Config{ServerURL: server.URL, Timeout: 5 * time.Second})
		_, err := client.Translate(ctx, "hello", "en", "xx")
		assert.Error(t, err)
	})
}
