package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for chat operations.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the conversation does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeUnknownModel indicates the model id is not in the registry.
	ErrCodeUnknownModel ErrorCode = "UNKNOWN_MODEL"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeDocumentProcessingFailed indicates document text extraction failed.
	// The turn is not persisted when this is returned.
	ErrCodeDocumentProcessingFailed ErrorCode = "DOCUMENT_PROCESSING_FAILED"
	// ErrCodeModelInvocationFailed indicates the model provider call failed or
	// timed out. The user turn is persisted but no assistant turn is.
	ErrCodeModelInvocationFailed ErrorCode = "MODEL_INVOCATION_FAILED"
	// ErrCodeTranslationDegraded indicates a best-effort translation failed.
	// Never fatal; carried as a marker, not a pipeline abort.
	ErrCodeTranslationDegraded ErrorCode = "TRANSLATION_DEGRADED"
	// ErrCodeTimeout indicates a pipeline stage exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal is the catch-all for failures without a more specific
	// code, such as storage errors surfacing as plain errors.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// ChatError represents a structured error for chat operations.
type ChatError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ChatError) Unwrap() error {
	return e.Cause
}

// Convenience constructors for common error types.

// NotFound creates a conversation-not-found error.
func NotFound(uid string) *ChatError {
	return &ChatError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("conversation not found: %s", uid),
	}
}

// UnknownModel creates an unknown-model error.
func UnknownModel(modelID string) *ChatError {
	return &ChatError{
		Code:    ErrCodeUnknownModel,
		Message: fmt.Sprintf("model not in registry: %s", modelID),
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *ChatError {
	return &ChatError{Code: ErrCodeInvalidArgument, Message: msg}
}

// DocumentProcessingFailed creates a document extraction error.
func DocumentProcessingFailed(msg string, cause error) *ChatError {
	return &ChatError{Code: ErrCodeDocumentProcessingFailed, Message: msg, Cause: cause}
}

// ModelInvocationFailed creates a model dispatch error.
func ModelInvocationFailed(msg string, cause error) *ChatError {
	return &ChatError{Code: ErrCodeModelInvocationFailed, Message: msg, Cause: cause}
}

// TranslationDegraded creates a non-fatal translation marker error.
func TranslationDegraded(cause error) *ChatError {
	return &ChatError{Code: ErrCodeTranslationDegraded, Message: "translation degraded", Cause: cause}
}

// Timeout creates a stage timeout error.
func Timeout(stage string, cause error) *ChatError {
	return &ChatError{
		Code:    ErrCodeTimeout,
		Message: fmt.Sprintf("stage timed out: %s", stage),
		Cause:   cause,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *ChatError {
	return &ChatError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if chatErr, ok := err.(*ChatError); ok {
		return chatErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a ChatError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if chatErr, ok := err.(*ChatError); ok {
		return chatErr.Code
	}
	return defaultCode
}
