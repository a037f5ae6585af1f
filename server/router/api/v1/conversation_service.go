package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parleyhq/parley/internal/errors"
	"github.com/parleyhq/parley/server/chat"
)

// ListConversationsResponse wraps the conversation summaries.
type ListConversationsResponse struct {
	Conversations []ConversationSummaryResponse `json:"conversations"`
}

// ConversationSummaryResponse is one row of the conversation listing.
type ConversationSummaryResponse struct {
	ID                string `json:"id"`
	ModelID           string `json:"model_id"`
	PreferredLanguage string `json:"preferred_language"`
	TurnCount         int    `json:"turn_count"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
}

// ListConversations lists all conversations, most recently updated first.
// GET /api/v1/conversations
func (s *APIV1Service) ListConversations(c echo.Context) error {
	summaries, err := s.Store.ListConversations(c.Request().Context())
	if err != nil {
		return jsonError(c, err)
	}

	response := ListConversationsResponse{
		Conversations: make([]ConversationSummaryResponse, 0, len(summaries)),
	}
	for _, summary := range summaries {
		response.Conversations = append(response.Conversations, ConversationSummaryResponse{
			ID:                summary.UID,
			ModelID:           summary.ModelID,
			PreferredLanguage: summary.PreferredLanguage,
			TurnCount:         summary.TurnCount,
			CreatedAt:         summary.CreatedTs,
			UpdatedAt:         summary.UpdatedTs,
		})
	}
	return c.JSON(http.StatusOK, response)
}

// GetConversation returns the full record, turns included.
// GET /api/v1/conversations/:id
func (s *APIV1Service) GetConversation(c echo.Context) error {
	conversation, err := s.Store.GetConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, conversation)
}

// DeleteConversation removes a conversation and its turns.
// DELETE /api/v1/conversations/:id
func (s *APIV1Service) DeleteConversation(c echo.Context) error {
	existed, err := s.Store.DeleteConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}
	if !existed {
		return jsonError(c, errors.NotFound(c.Param("id")))
	}
	return c.NoContent(http.StatusNoContent)
}

// SetLanguageRequest is the PUT language payload.
type SetLanguageRequest struct {
	LanguageCode string `json:"language_code" form:"language_code"`
}

// SuccessResponse acknowledges a settings change.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// SetConversationLanguage sets the preferred language explicitly, outside
// of any chat turn. Accepts a code or a language name.
// PUT /api/v1/conversations/:id/language
func (s *APIV1Service) SetConversationLanguage(c echo.Context) error {
	request := &SetLanguageRequest{}
	if err := c.Bind(request); err != nil {
		return jsonError(c, errors.InvalidArgument("malformed request body"))
	}
	if request.LanguageCode == "" {
		return jsonError(c, errors.InvalidArgument("language_code is required"))
	}
	if code, ok := chat.ResolveLanguageName(request.LanguageCode); ok {
		request.LanguageCode = code
	}

	if _, err := s.Store.SetLanguage(c.Request().Context(), c.Param("id"), request.LanguageCode); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// SetModelRequest is the PUT model payload.
type SetModelRequest struct {
	ModelID string `json:"model_id" form:"model_id"`
}

// SetConversationModel switches the conversation's active model. History
// is preserved across the switch.
// PUT /api/v1/conversations/:id/model
func (s *APIV1Service) SetConversationModel(c echo.Context) error {
	request := &SetModelRequest{}
	if err := c.Bind(request); err != nil {
		return jsonError(c, errors.InvalidArgument("malformed request body"))
	}
	if request.ModelID == "" {
		return jsonError(c, errors.InvalidArgument("model_id is required"))
	}

	conversation, err := s.Store.SetModel(c.Request().Context(), c.Param("id"), request.ModelID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, conversation)
}
