package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/profile"
	"github.com/parleyhq/parley/plugin/langdetect"
	"github.com/parleyhq/parley/plugin/llm"
	"github.com/parleyhq/parley/server/chat"
	"github.com/parleyhq/parley/store"
	"github.com/parleyhq/parley/store/db/memdb"
)

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte, _ string) (string, error) {
	return s.text, s.err
}

type stubDetector struct{}

func (s *stubDetector) Detect(_ context.Context, _ string) (langdetect.Detection, error) {
	return langdetect.Detection{Language: "en", Confidence: 1.0}, nil
}

type stubTranslator struct{}

func (s *stubTranslator) Translate(_ context.Context, text, _, target string) (string, error) {
	return "[" + target + "] " + text, nil
}

type stubInvoker struct {
	response string
	err      error
}

func (s *stubInvoker) Invoke(_ context.Context, _ llm.Request) (string, error) {
	return s.response, s.err
}

type testFixture struct {
	service   *APIV1Service
	echo      *echo.Echo
	store     *store.Store
	extractor *stubExtractor
	invoker   *stubInvoker
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	prof := &profile.Profile{Mode: "dev", Driver: "memory"}
	require.NoError(t, prof.Validate())

	st := store.New(memdb.NewDB(), store.NewModelRegistry(nil), prof)
	extractor := &stubExtractor{}
	invoker := &stubInvoker{response: "model reply"}
	pipeline := chat.NewPipeline(st, extractor, &stubDetector{}, &stubTranslator{}, invoker, prof, slog.Default())

	service := &APIV1Service{
		Profile: prof,
		Store:   st,
		ChatService: &ChatService{
			Store:    st,
			Pipeline: pipeline,
			Logger:   slog.Default(),
		},
	}

	e := echo.New()
	service.RegisterRoutes(e)

	return &testFixture{service: service, echo: e, store: st, extractor: extractor, invoker: invoker}
}

func (f *testFixture) postJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func (f *testFixture) putJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func (f *testFixture) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func decodeTurnResult(t *testing.T, rec *httptest.ResponseRecorder) *chat.TurnResult {
	t.Helper()
	result := &chat.TurnResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), result))
	return result
}

func TestSendMessage(t *testing.T) {
	t.Run("NewConversation", func(t *testing.T) {
		f := newTestFixture(t)

		rec := f.postJSON(t, "/api/v1/chat", ChatRequest{Message: "hello"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		result := decodeTurnResult(t, rec)
		assert.NotEmpty(t, result.ConversationID)
		assert.Equal(t, "model reply", result.Response)
		assert.Equal(t, "gpt-4o-mini", result.ModelID)
		assert.Empty(t, result.PreferredLanguage)
	})

	t.Run("ContinuesConversation", func(t *testing.T) {
		f := newTestFixture(t)

		first := decodeTurnResult(t, f.postJSON(t, "/api/v1/chat", ChatRequest{Message: "hello"}))
		rec := f.postJSON(t, "/api/v1/chat", ChatRequest{
			ConversationID: first.ConversationID,
			Message:        "and again",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		conversation, err := f.store.GetConversation(context.Background(), first.ConversationID)
		require.NoError(t, err)
		assert.Len(t, conversation.Turns, 4)
	})

	t.Run("EmptyMessage", func(t *testing.T) {
		f := newTestFixture(t)
		rec := f.postJSON(t, "/api/v1/chat", ChatRequest{Message: "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownModel", func(t *testing.T) {
		f := newTestFixture(t)
		rec := f.postJSON(t, "/api/v1/chat", ChatRequest{Message: "hello", ModelID: "not-a-model"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownConversation", func(t *testing.T) {
		f := newTestFixture(t)
		rec := f.postJSON(t, "/api/v1/chat", ChatRequest{ConversationID: "missing", Message: "hello"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ModelSwitchMidConversation", func(t *testing.T) {
		f := newTestFixture(t)

		first := decodeTurnResult(t, f.postJSON(t, "/api/v1/chat", ChatRequest{Message: "hello"}))
		rec := f.postJSON(t, "/api/v1/chat", ChatRequest{
			ConversationID: first.ConversationID,
			Message:        "again",
			ModelID:        "deepseek-chat",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "deepseek-chat", decodeTurnResult(t, rec).ModelID)
	})

	t.Run("DispatchFailure", func(t *testing.T) {
		f := newTestFixture(t)
		f.invoker.err = errors.New("provider down")

		rec := f.postJSON(t, "/api/v1/chat", ChatRequest{Message: "hello"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		payload := map[string]string{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
		assert.Equal(t, "MODEL_INVOCATION_FAILED", payload["code"])
	})

	t.Run("LanguageSwitchMessage", func(t *testing.T) {
		f := newTestFixture(t)

		rec := f.postJSON(t, "/api/v1/chat", ChatRequest{Message: "switch to spanish"})
		require.Equal(t, http.StatusOK, rec.Code)

		result := decodeTurnResult(t, rec)
		assert.True(t, result.LanguageChanged)
		assert.Equal(t, "es", result.PreferredLanguage)
	})
}

func TestSendMessageMultipart(t *testing.T) {
	t.Run("WithDocument", func(t *testing.T) {
		f := newTestFixture(t)
		f.extractor.text = "extracted body"

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		require.NoError(t, writer.WriteField("message", "summarize this"))
		part, err := writer.CreateFormFile("pdf", "report.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.7 fake"))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", &buf)
		req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
		rec := httptest.NewRecorder()
		f.echo.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		result := decodeTurnResult(t, rec)
		conversation, err := f.store.GetConversation(context.Background(), result.ConversationID)
		require.NoError(t, err)
		require.Len(t, conversation.Turns, 2)
		require.NotNil(t, conversation.Turns[0].DocumentContext)
		assert.Equal(t, "extracted body", *conversation.Turns[0].DocumentContext)
	})

	t.Run("ExtractionFailure", func(t *testing.T) {
		f := newTestFixture(t)
		f.extractor.err = errors.New("tika down")

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		require.NoError(t, writer.WriteField("message", "summarize this"))
		part, err := writer.CreateFormFile("document", "report.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("broken"))
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", &buf)
		req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
		rec := httptest.NewRecorder()
		f.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("WithoutDocument", func(t *testing.T) {
		f := newTestFixture(t)

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		require.NoError(t, writer.WriteField("message", "hello"))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", &buf)
		req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
		rec := httptest.NewRecorder()
		f.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func TestListModels(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/models")
	require.Equal(t, http.StatusOK, rec.Code)

	response := ListModelsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "gpt-4o-mini", response.DefaultModel)
	assert.Contains(t, response.Models, "gpt-4o-mini")
	assert.Contains(t, response.Models, "deepseek-chat")
}

func TestConversationEndpoints(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	first := decodeTurnResult(t, f.postJSON(t, "/api/v1/chat", ChatRequest{Message: "hello"}))

	t.Run("List", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/conversations")
		require.Equal(t, http.StatusOK, rec.Code)

		response := ListConversationsResponse{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		require.Len(t, response.Conversations, 1)
		assert.Equal(t, first.ConversationID, response.Conversations[0].ID)
		assert.Equal(t, 2, response.Conversations[0].TurnCount)
	})

	t.Run("Get", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/conversations/"+first.ConversationID)
		require.Equal(t, http.StatusOK, rec.Code)

		conversation := store.Conversation{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conversation))
		assert.Len(t, conversation.Turns, 2)
	})

	t.Run("GetMissing", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/conversations/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("SetLanguage", func(t *testing.T) {
		rec := f.putJSON(t, fmt.Sprintf("/api/v1/conversations/%s/language", first.ConversationID), SetLanguageRequest{LanguageCode: "spanish"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":true`)

		conversation, err := f.store.GetConversation(ctx, first.ConversationID)
		require.NoError(t, err)
		assert.Equal(t, "es", conversation.PreferredLanguage)
	})

	t.Run("SetLanguageInvalid", func(t *testing.T) {
		rec := f.putJSON(t, fmt.Sprintf("/api/v1/conversations/%s/language", first.ConversationID), SetLanguageRequest{LanguageCode: "!!"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("SetModel", func(t *testing.T) {
		rec := f.putJSON(t, fmt.Sprintf("/api/v1/conversations/%s/model", first.ConversationID), SetModelRequest{ModelID: "gpt-4o"})
		require.Equal(t, http.StatusOK, rec.Code)

		conversation, err := f.store.GetConversation(ctx, first.ConversationID)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", conversation.ModelID)
		assert.Len(t, conversation.Turns, 2, "history survives a model switch")
	})

	t.Run("SetModelUnknown", func(t *testing.T) {
		rec := f.putJSON(t, fmt.Sprintf("/api/v1/conversations/%s/model", first.ConversationID), SetModelRequest{ModelID: "nope"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		rec := f.do(http.MethodDelete, "/api/v1/conversations/"+first.ConversationID)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = f.do(http.MethodGet, "/api/v1/conversations/"+first.ConversationID)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = f.do(http.MethodDelete, "/api/v1/conversations/"+first.ConversationID)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestJSONErrorDefaultsToInternal(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	// A plain error, such as a wrapped driver failure, is not a provider
	// problem and must not surface as one.
	require.NoError(t, jsonError(c, errors.New("disk full")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	payload := map[string]string{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "INTERNAL", payload["code"])
	assert.Equal(t, "disk full", payload["message"])
}

func TestHealth(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"status":"ok"`))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newTestFixture(t)

	rec := f.do(http.MethodGet, "/api/v1/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "turns_total")
}

func TestUsageEndpoint(t *testing.T) {
	f := newTestFixture(t)

	rec := f.postJSON(t, "/api/v1/chat", ChatRequest{Message: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/usage")
	require.Equal(t, http.StatusOK, rec.Code)

	report := struct {
		TotalDispatches int64 `json:"total_dispatches"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.EqualValues(t, 1, report.TotalDispatches)
}
