package chat

import (
	"fmt"
	"strings"

	"github.com/parleyhq/parley/plugin/llm"
	"github.com/parleyhq/parley/store"
)

// Rough token estimate. Providers tokenize differently; four characters per
// token is close enough for budgeting a prompt window.
const charsPerToken = 4

// responseReserveTokens is held back from the model's context window so the
// reply has room to be generated.
const responseReserveTokens = 1024

const (
	documentOpenDelimiter  = "BEGIN DOCUMENT"
	documentCloseDelimiter = "END DOCUMENT"
)

func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return len(s)/charsPerToken + 1
}

// BuildPrompt assembles the message list for one dispatch: the system prompt
// first, then as much conversation history as the model's window affords,
// then the current user message. History is evicted oldest-first; the
// current message and the system prompt are never evicted, even when the
// message alone overflows the window.
func BuildPrompt(systemPrompt string, history []store.Turn, userText string, documentContext string, windowTokens int) []llm.Message {
	current := llm.UserMessage(renderUserContent(userText, documentContext))

	budget := windowTokens - responseReserveTokens
	budget -= estimateTokens(systemPrompt)
	budget -= estimateTokens(current.Content)

	// Walk history newest-first, keeping what fits, then restore order.
	var kept []llm.Message
	for i := len(history) - 1; i >= 0; i-- {
		msg := messageForTurn(history[i])
		cost := estimateTokens(msg.Content)
		if cost > budget {
			break
		}
		budget -= cost
		kept = append(kept, msg)
	}

	messages := make([]llm.Message, 0, len(kept)+2)
	messages = append(messages, llm.SystemPrompt(systemPrompt))
	for i := len(kept) - 1; i >= 0; i-- {
		messages = append(messages, kept[i])
	}
	return append(messages, current)
}

// renderUserContent fences extracted document text away from the user's
// instruction so the model can tell reference material from the request.
func renderUserContent(userText, documentContext string) string {
	if documentContext == "" {
		return userText
	}
	var b strings.Builder
	b.WriteString(userText)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s\n%s\n%s\n", documentOpenDelimiter, documentContext, documentCloseDelimiter)
	b.WriteString("Use the document above as reference material when answering.")
	return b.String()
}

func renderTurnContent(turn store.Turn) string {
	if turn.DocumentContext != nil && *turn.DocumentContext != "" {
		return renderUserContent(turn.Text, *turn.DocumentContext)
	}
	return turn.Text
}

// messageForTurn maps a stored turn onto its wire message. System turns are
// language-switch acknowledgments and travel with the system role.
func messageForTurn(turn store.Turn) llm.Message {
	content := renderTurnContent(turn)
	switch turn.Role {
	case store.RoleAssistant:
		return llm.AssistantMessage(content)
	case store.RoleSystem:
		return llm.SystemPrompt(content)
	default:
		return llm.UserMessage(content)
	}
}
