package v1

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	cherrors "github.com/parleyhq/parley/internal/errors"
	"github.com/parleyhq/parley/server/chat"
	"github.com/parleyhq/parley/store"
)

// maxDocumentBytes caps uploaded document size.
const maxDocumentBytes = 20 << 20 // 20 MiB

// ChatService handles message turns. It owns the per-conversation turn
// locks: two requests against the same conversation run one after the
// other, each seeing the turns the previous one appended.
type ChatService struct {
	Store    *store.Store
	Pipeline *chat.Pipeline
	Logger   *slog.Logger

	// turnLocks maps conversation uid to its turn lock.
	turnLocks sync.Map // string -> *sync.Mutex
}

// ChatRequest is the POST /chat payload. With a document attachment the
// same fields arrive as multipart form values plus a "document" file part.
type ChatRequest struct {
	// ConversationID is empty to start a new conversation.
	ConversationID string `json:"conversation_id" form:"conversation_id"`
	Message        string `json:"message" form:"message"`
	// ModelID optionally selects or switches the conversation's model.
	ModelID string `json:"model_id" form:"model_id"`
}

// SendMessage runs one turn through the pipeline.
// POST /api/v1/chat
func (s *ChatService) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()

	request, document, documentType, err := s.parseRequest(c)
	if err != nil {
		return jsonError(c, err)
	}
	if strings.TrimSpace(request.Message) == "" {
		return jsonError(c, cherrors.InvalidArgument("message must not be empty"))
	}

	conversation, err := s.resolveConversation(c, request)
	if err != nil {
		return jsonError(c, err)
	}

	mu := s.turnLockFor(conversation.UID)
	mu.Lock()
	defer mu.Unlock()

	// Re-read under the lock so this turn sees everything the previous
	// turn appended.
	conversation, err = s.Store.GetConversation(ctx, conversation.UID)
	if err != nil {
		return jsonError(c, err)
	}

	result, err := s.Pipeline.Process(ctx, conversation, &chat.TurnRequest{
		Message:      request.Message,
		Document:     document,
		DocumentType: documentType,
	})
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// parseRequest decodes either a JSON body or a multipart form with an
// optional document file part.
func (s *ChatService) parseRequest(c echo.Context) (*ChatRequest, []byte, string, error) {
	request := &ChatRequest{}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		if err := c.Bind(request); err != nil {
			return nil, nil, "", cherrors.InvalidArgument("malformed request body")
		}
		return request, nil, "", nil
	}

	request.ConversationID = c.FormValue("conversation_id")
	request.Message = c.FormValue("message")
	request.ModelID = c.FormValue("model_id")

	fileHeader, err := c.FormFile("pdf")
	if err != nil && errors.Is(err, http.ErrMissingFile) {
		// Any Tika-supported type is accepted, so "document" works too.
		fileHeader, err = c.FormFile("document")
	}
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return request, nil, "", nil
		}
		return nil, nil, "", cherrors.InvalidArgument("malformed multipart form")
	}
	if fileHeader.Size > maxDocumentBytes {
		return nil, nil, "", cherrors.InvalidArgument("document exceeds size limit")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, nil, "", cherrors.InvalidArgument("could not open document part")
	}
	defer file.Close()

	document, err := io.ReadAll(io.LimitReader(file, maxDocumentBytes+1))
	if err != nil {
		return nil, nil, "", cherrors.InvalidArgument("could not read document part")
	}
	if len(document) > maxDocumentBytes {
		return nil, nil, "", cherrors.InvalidArgument("document exceeds size limit")
	}
	return request, document, fileHeader.Header.Get(echo.HeaderContentType), nil
}

// resolveConversation loads the target conversation, creating one when no
// id was supplied and switching its model when a different one was.
func (s *ChatService) resolveConversation(c echo.Context, request *ChatRequest) (*store.Conversation, error) {
	ctx := c.Request().Context()

	if request.ConversationID == "" {
		return s.Store.CreateConversation(ctx, request.ModelID)
	}

	conversation, err := s.Store.GetConversation(ctx, request.ConversationID)
	if err != nil {
		return nil, err
	}
	if request.ModelID != "" && request.ModelID != conversation.ModelID {
		conversation, err = s.Store.SetModel(ctx, conversation.UID, request.ModelID)
		if err != nil {
			return nil, err
		}
	}
	return conversation, nil
}

func (s *ChatService) turnLockFor(uid string) *sync.Mutex {
	actual, _ := s.turnLocks.LoadOrStore(uid, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
