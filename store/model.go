package store

import (
	"sort"
)

// ModelDescriptor describes one backend model available for dispatch.
type ModelDescriptor struct {
	ID          string `json:"id" mapstructure:"id"`
	Provider    string `json:"provider" mapstructure:"provider"`
	MaxTokens   int    `json:"max_tokens" mapstructure:"max_tokens"`
	Description string `json:"description" mapstructure:"description"`
}

// builtinModels are always registered. Deployments extend the set through
// the models section of the config file.
var builtinModels = []ModelDescriptor{
	{
		ID:          "gpt-4o-mini",
		Provider:    "openai",
		MaxTokens:   128000,
		Description: "OpenAI GPT-4o mini, fast general-purpose chat",
	},
	{
		ID:          "gpt-4o",
		Provider:    "openai",
		MaxTokens:   128000,
		Description: "OpenAI GPT-4o",
	},
	{
		ID:          "llama-3.1-8b-instant",
		Provider:    "groq",
		MaxTokens:   131072,
		Description: "Llama 3.1 8B served by Groq",
	},
	{
		ID:          "deepseek-chat",
		Provider:    "deepseek",
		MaxTokens:   65536,
		Description: "DeepSeek V3 chat model",
	},
}

// ModelRegistry is the static mapping of model ids to descriptors.
// Populated once at process start; read-only afterwards, safe for
// concurrent reads.
type ModelRegistry struct {
	models map[string]ModelDescriptor
}

// NewModelRegistry builds a registry from the built-in models plus any
// extras. An extra with a built-in id overrides the built-in descriptor.
func NewModelRegistry(extras []ModelDescriptor) *ModelRegistry {
	models := make(map[string]ModelDescriptor, len(builtinModels)+len(extras))
	for _, m := range builtinModels {
		models[m.ID] = m
	}
	for _, m := range extras {
		if m.ID == "" {
			continue
		}
		if m.MaxTokens <= 0 {
			m.MaxTokens = 8192
		}
		models[m.ID] = m
	}
	return &ModelRegistry{models: models}
}

// Get returns the descriptor for the given id.
func (r *ModelRegistry) Get(id string) (ModelDescriptor, bool) {
	m, ok := r.models[id]
	return m, ok
}

// Has reports whether the id is registered.
func (r *ModelRegistry) Has(id string) bool {
	_, ok := r.models[id]
	return ok
}

// List returns all descriptors sorted by id.
func (r *ModelRegistry) List() []ModelDescriptor {
	list := make([]ModelDescriptor, 0, len(r.models))
	for _, m := range r.models {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
