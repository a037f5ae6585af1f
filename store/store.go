package store

import (
	"context"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/text/language"

	"github.com/parleyhq/parley/internal/errors"
	"github.com/parleyhq/parley/internal/profile"
	"github.com/parleyhq/parley/store/cache"
)

// Store owns all conversation records. Mutations against the same
// conversation uid are serialized by a keyed mutex; different uids proceed
// independently. Callers always receive copies. Reads go through a bounded
// TTL cache; the database stays the source of truth.
type Store struct {
	profile  *profile.Profile
	driver   Driver
	registry *ModelRegistry
	cache    *cache.Cache

	// locks maps conversation uid to its exclusive update lock.
	locks sync.Map // string -> *sync.Mutex
}

// New creates a new instance of Store.
func New(driver Driver, registry *ModelRegistry, profile *profile.Profile) *Store {
	return &Store{
		profile:  profile,
		driver:   driver,
		registry: registry,
		cache:    cache.New(cache.DefaultMaxEntries, cache.DefaultTTL),
	}
}

// Registry returns the model registry.
func (s *Store) Registry() *ModelRegistry {
	return s.registry
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// CreateConversation allocates a new conversation with an empty turn
// sequence. An empty modelID selects the configured default; a non-empty
// one must be registered.
func (s *Store) CreateConversation(ctx context.Context, modelID string) (*Conversation, error) {
	if modelID == "" {
		modelID = s.profile.DefaultModel
	}
	if !s.registry.Has(modelID) {
		return nil, errors.UnknownModel(modelID)
	}

	now := time.Now().Unix()
	conversation := &Conversation{
		UID:               shortuuid.New(),
		ModelID:           modelID,
		PreferredLanguage: s.profile.DefaultLanguage,
		CreatedTs:         now,
		UpdatedTs:         now,
		Turns:             []Turn{},
	}
	if err := s.driver.CreateConversation(ctx, conversation); err != nil {
		return nil, err
	}
	s.cache.Set(conversation.UID, conversation.Clone())
	return conversation.Clone(), nil
}

// GetConversation returns a copy of the record.
func (s *Store) GetConversation(ctx context.Context, uid string) (*Conversation, error) {
	if cached, ok := s.cache.Get(uid); ok {
		return cached.(*Conversation).Clone(), nil
	}

	// The cache is only populated under the conversation's lock. A read
	// racing a mutation could otherwise finish after the mutation and
	// re-populate the cache with the pre-mutation record.
	mu := s.lockFor(uid)
	mu.Lock()
	defer mu.Unlock()

	if cached, ok := s.cache.Get(uid); ok {
		return cached.(*Conversation).Clone(), nil
	}

	conversation, err := s.driver.GetConversation(ctx, uid)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, errors.NotFound(uid)
	}
	s.cache.Set(uid, conversation.Clone())
	return conversation.Clone(), nil
}

// AppendTurns appends the given turns in order as one atomic mutation and
// bumps the last-updated timestamp.
func (s *Store) AppendTurns(ctx context.Context, uid string, turns ...Turn) (*Conversation, error) {
	return s.mutate(ctx, uid, func(conversation *Conversation) error {
		conversation.Turns = append(conversation.Turns, turns...)
		return nil
	})
}

// SetModel switches the conversation's active model after validating the id
// against the registry. An unknown id leaves the record unchanged.
func (s *Store) SetModel(ctx context.Context, uid string, modelID string) (*Conversation, error) {
	if !s.registry.Has(modelID) {
		return nil, errors.UnknownModel(modelID)
	}
	return s.mutate(ctx, uid, func(conversation *Conversation) error {
		conversation.ModelID = modelID
		return nil
	})
}

// SetLanguage updates the conversation's preferred language. The code is
// canonicalized to its ISO 639-1 base ("ES" and "es-419" both become "es").
func (s *Store) SetLanguage(ctx context.Context, uid string, langCode string) (*Conversation, error) {
	canonical, err := CanonicalLanguage(langCode)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, uid, func(conversation *Conversation) error {
		conversation.PreferredLanguage = canonical
		return nil
	})
}

// ListConversations returns summaries for all conversations.
func (s *Store) ListConversations(ctx context.Context) ([]*ConversationSummary, error) {
	return s.driver.ListConversations(ctx)
}

// DeleteConversation removes a conversation, reporting whether it existed.
func (s *Store) DeleteConversation(ctx context.Context, uid string) (bool, error) {
	mu := s.lockFor(uid)
	mu.Lock()
	defer mu.Unlock()

	existed, err := s.driver.DeleteConversation(ctx, uid)
	if err != nil {
		return false, err
	}
	s.cache.Delete(uid)
	if existed {
		s.locks.Delete(uid)
	}
	return existed, nil
}

// mutate loads, transforms, and saves a conversation under its keyed lock.
func (s *Store) mutate(ctx context.Context, uid string, fn func(*Conversation) error) (*Conversation, error) {
	mu := s.lockFor(uid)
	mu.Lock()
	defer mu.Unlock()

	conversation, err := s.driver.GetConversation(ctx, uid)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, errors.NotFound(uid)
	}

	if err := fn(conversation); err != nil {
		return nil, err
	}
	conversation.UpdatedTs = time.Now().Unix()

	if err := s.driver.SaveConversation(ctx, conversation); err != nil {
		return nil, err
	}
	s.cache.Set(uid, conversation.Clone())
	return conversation.Clone(), nil
}

func (s *Store) lockFor(uid string) *sync.Mutex {
	actual, _ := s.locks.LoadOrStore(uid, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// CanonicalLanguage normalizes a language code to its ISO 639-1 base form.
func CanonicalLanguage(code string) (string, error) {
	tag, err := language.Parse(code)
	if err != nil {
		return "", errors.InvalidArgument("unrecognized language code: " + code)
	}
	base, _ := tag.Base()
	return base.String(), nil
}
