// Package v1 exposes the conversation API over HTTP.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parleyhq/parley/internal/errors"
	"github.com/parleyhq/parley/internal/profile"
	"github.com/parleyhq/parley/plugin/docextract"
	"github.com/parleyhq/parley/plugin/langdetect"
	"github.com/parleyhq/parley/plugin/llm"
	"github.com/parleyhq/parley/plugin/translate"
	"github.com/parleyhq/parley/server/chat"
	"github.com/parleyhq/parley/server/internal/observability"
	"github.com/parleyhq/parley/store"
)

// APIV1Service wires the turn pipeline and the store to the HTTP routes.
type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store

	ChatService *ChatService
}

// NewAPIV1Service assembles the capability clients from the profile and
// builds the pipeline over them.
func NewAPIV1Service(prof *profile.Profile, st *store.Store, logger *slog.Logger) *APIV1Service {
	extractor := docextract.NewClient(&docextract.Config{
		ServerURL: prof.TikaServerURL,
		Timeout:   prof.DocExtractTimeout,
	})
	translator := translate.NewClient(&translate.Config{
		ServerURL: prof.TranslateServerURL,
		Timeout:   prof.TranslateTimeout,
	})
	invoker := llm.NewOpenAIInvoker(&llm.Config{
		BaseURL: prof.LLMBaseURL,
		APIKey:  prof.LLMAPIKey,
	})
	detector := langdetect.NewLinguaDetector()

	pipeline := chat.NewPipeline(st, extractor, detector, translator, invoker, prof, logger)
	return &APIV1Service{
		Profile: prof,
		Store:   st,
		ChatService: &ChatService{
			Store:    st,
			Pipeline: pipeline,
			Logger:   logger,
		},
	}
}

// RegisterRoutes registers all API routes with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	echoServer.GET("/healthz", s.GetHealth)

	apiGroup := echoServer.Group("/api/v1")
	apiGroup.POST("/chat", s.ChatService.SendMessage)
	apiGroup.GET("/models", s.ListModels)
	apiGroup.GET("/conversations", s.ListConversations)
	apiGroup.GET("/conversations/:id", s.GetConversation)
	apiGroup.DELETE("/conversations/:id", s.DeleteConversation)
	apiGroup.PUT("/conversations/:id/language", s.SetConversationLanguage)
	apiGroup.PUT("/conversations/:id/model", s.SetConversationModel)
	apiGroup.GET("/metrics", s.GetMetrics)
	apiGroup.GET("/usage", s.GetUsage)
}

// HealthResponse is the health probe payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Mode    string `json:"mode"`
}

// GetHealth reports process liveness.
// GET /healthz
func (s *APIV1Service) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.Profile.Version,
		Mode:    s.Profile.Mode,
	})
}

// GetMetrics returns pipeline counters.
// GET /api/v1/metrics
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, observability.GlobalMetrics().Snapshot())
}

// GetUsage returns per-model dispatch volume and estimated spend.
// GET /api/v1/usage
func (s *APIV1Service) GetUsage(c echo.Context) error {
	return c.JSON(http.StatusOK, s.ChatService.Pipeline.Usage().Report())
}

// errorResponse is the uniform error payload.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// jsonError maps a pipeline or store error onto an HTTP status and payload.
func jsonError(c echo.Context, err error) error {
	code := errors.GetCodeFromError(err, errors.ErrCodeInternal)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeUnknownModel, errors.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case errors.ErrCodeModelInvocationFailed:
		status = http.StatusBadGateway
	case errors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	case errors.ErrCodeDocumentProcessingFailed:
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if chatErr, ok := err.(*errors.ChatError); ok {
		message = chatErr.Message
	}
	return c.JSON(status, errorResponse{Code: string(code), Message: message})
}
