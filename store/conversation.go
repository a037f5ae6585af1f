package store

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message within a conversation. Turns are immutable once
// appended; a conversation's turn sequence only grows.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
	// DocumentContext holds the verbatim text extracted from a document
	// attached to this turn, kept for re-display. Nil when no document
	// was attached.
	DocumentContext *string `json:"document_context,omitempty"`
	// Language is the code the turn was authored or rendered in.
	Language  string `json:"language"`
	CreatedTs int64  `json:"timestamp"`
	// TranslationDegraded marks a turn whose best-effort translation failed
	// and whose text was carried through untranslated.
	TranslationDegraded bool `json:"translation_degraded,omitempty"`
}

// Conversation is a durable, ordered record of turns with its model and
// language settings. Serialized form matches the persisted-state layout.
type Conversation struct {
	UID               string `json:"id"`
	ModelID           string `json:"model_id"`
	PreferredLanguage string `json:"preferred_language"`
	CreatedTs         int64  `json:"created_at"`
	UpdatedTs         int64  `json:"updated_at"`
	Turns             []Turn `json:"turns"`
}

// Clone returns a deep copy so callers never share the store's record.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Turns = make([]Turn, len(c.Turns))
	for i, turn := range c.Turns {
		clone.Turns[i] = turn
		if turn.DocumentContext != nil {
			doc := *turn.DocumentContext
			clone.Turns[i].DocumentContext = &doc
		}
	}
	return &clone
}

// Summary returns the bounded listing view of the conversation.
func (c *Conversation) Summary() *ConversationSummary {
	return &ConversationSummary{
		UID:               c.UID,
		ModelID:           c.ModelID,
		PreferredLanguage: c.PreferredLanguage,
		TurnCount:         len(c.Turns),
		CreatedTs:         c.CreatedTs,
		UpdatedTs:         c.UpdatedTs,
	}
}

// ConversationSummary is the listing view: settings and counts, no turn text.
type ConversationSummary struct {
	UID               string `json:"id"`
	ModelID           string `json:"model_id"`
	PreferredLanguage string `json:"preferred_language"`
	TurnCount         int    `json:"turn_count"`
	CreatedTs         int64  `json:"created_at"`
	UpdatedTs         int64  `json:"updated_at"`
}
