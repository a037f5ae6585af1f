package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/errors"
	"github.com/parleyhq/parley/internal/profile"
	"github.com/parleyhq/parley/store"
	"github.com/parleyhq/parley/store/db/memdb"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{Mode: "dev", Driver: "memory"}
	require.NoError(t, p.Validate())
	return store.New(memdb.NewDB(), store.NewModelRegistry(nil), p)
}

func TestCreateConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t.Run("Defaults", func(t *testing.T) {
		conversation, err := s.CreateConversation(ctx, "")
		require.NoError(t, err)

		assert.NotEmpty(t, conversation.UID)
		assert.Equal(t, "gpt-4o-mini", conversation.ModelID)
		assert.Equal(t, "en", conversation.PreferredLanguage)
		assert.Empty(t, conversation.Turns)
	})

	t.Run("ExplicitModel", func(t *testing.T) {
		conversation, err := s.CreateConversation(ctx, "deepseek-chat")
		require.NoError(t, err)
		assert.Equal(t, "deepseek-chat", conversation.ModelID)
	})

	t.Run("UnknownModelRejected", func(t *testing.T) {
		_, err := s.CreateConversation(ctx, "not-a-model")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownModel))
	})

	t.Run("UniqueIDs", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			conversation, err := s.CreateConversation(ctx, "")
			require.NoError(t, err)
			assert.False(t, seen[conversation.UID])
			seen[conversation.UID] = true
		}
	})
}

func TestAppendTurnsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conversation, err := s.CreateConversation(ctx, "")
	require.NoError(t, err)

	const n = 7
	for i := 0; i < n; i++ {
		_, err := s.AppendTurns(ctx, conversation.UID, store.Turn{
			Role:     store.RoleUser,
			Text:     fmt.Sprintf("message %d", i),
			Language: "en",
		})
		require.NoError(t, err)
	}

	got, err := s.GetConversation(ctx, conversation.UID)
	require.NoError(t, err)
	require.Len(t, got.Turns, n)
	for i, turn := range got.Turns {
		assert.Equal(t, fmt.Sprintf("message %d", i), turn.Text)
	}
}

func TestAppendTurnsAtomicPair(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conversation, err := s.CreateConversation(ctx, "")
	require.NoError(t, err)

	updated, err := s.AppendTurns(ctx, conversation.UID,
		store.Turn{Role: store.RoleUser, Text: "hi", Language: "en"},
		store.Turn{Role: store.RoleAssistant, Text: "hello", Language: "en"},
	)
	require.NoError(t, err)
	require.Len(t, updated.Turns, 2)
	assert.Equal(t, store.RoleUser, updated.Turns[0].Role)
	assert.Equal(t, store.RoleAssistant, updated.Turns[1].Role)
}

func TestConcurrentAppendsSameConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conversation, err := s.CreateConversation(ctx, "")
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.AppendTurns(ctx, conversation.UID,
				store.Turn{Role: store.RoleUser, Text: fmt.Sprintf("u%d", i), Language: "en"},
				store.Turn{Role: store.RoleAssistant, Text: fmt.Sprintf("a%d", i), Language: "en"},
			)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.GetConversation(ctx, conversation.UID)
	require.NoError(t, err)
	require.Len(t, got.Turns, writers*2)

	// Pairs must never interleave: each user turn is directly followed by
	// its assistant turn.
	for i := 0; i < len(got.Turns); i += 2 {
		assert.Equal(t, store.RoleUser, got.Turns[i].Role)
		assert.Equal(t, store.RoleAssistant, got.Turns[i+1].Role)
		assert.Equal(t, got.Turns[i].Text[1:], got.Turns[i+1].Text[1:])
	}
}

// gateDriver stalls one GetConversation between the driver read and its
// return so a test can interleave a mutation with a slow read.
type gateDriver struct {
	store.Driver

	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (d *gateDriver) GetConversation(ctx context.Context, uid string) (*store.Conversation, error) {
	conversation, err := d.Driver.GetConversation(ctx, uid)
	d.mu.Lock()
	stall := d.armed
	d.armed = false
	d.mu.Unlock()
	if stall {
		d.entered <- struct{}{}
		<-d.release
	}
	return conversation, err
}

func TestSlowReadDoesNotCacheStaleRecord(t *testing.T) {
	ctx := context.Background()
	db := memdb.NewDB()
	driver := &gateDriver{Driver: db, entered: make(chan struct{}, 1), release: make(chan struct{})}
	p := &profile.Profile{Mode: "dev", Driver: "memory"}
	require.NoError(t, p.Validate())
	s := store.New(driver, store.NewModelRegistry(nil), p)

	// Create on the inner driver directly so the store's cache starts cold
	// and the first read goes to the database.
	now := time.Now().Unix()
	require.NoError(t, db.CreateConversation(ctx, &store.Conversation{
		UID:               "slow-read",
		ModelID:           "gpt-4o-mini",
		PreferredLanguage: "en",
		CreatedTs:         now,
		UpdatedTs:         now,
		Turns:             []store.Turn{},
	}))

	driver.mu.Lock()
	driver.armed = true
	driver.mu.Unlock()

	readDone := make(chan error, 1)
	go func() {
		_, err := s.GetConversation(ctx, "slow-read")
		readDone <- err
	}()
	<-driver.entered // the reader now holds the pre-append record

	appendDone := make(chan error, 1)
	go func() {
		_, err := s.AppendTurns(ctx, "slow-read",
			store.Turn{Role: store.RoleUser, Text: "hi", Language: "en"})
		appendDone <- err
	}()

	// Give the append a window to land first; either interleaving must leave
	// the cache consistent with the database.
	time.Sleep(50 * time.Millisecond)
	close(driver.release)
	require.NoError(t, <-readDone)
	require.NoError(t, <-appendDone)

	got, err := s.GetConversation(ctx, "slow-read")
	require.NoError(t, err)
	require.Len(t, got.Turns, 1)
	assert.Equal(t, "hi", got.Turns[0].Text)
}

func TestSetModel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conversation, err := s.CreateConversation(ctx, "")
	require.NoError(t, err)

	t.Run("Known", func(t *testing.T) {
		updated, err := s.SetModel(ctx, conversation.UID, "gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", updated.ModelID)
	})

	t.Run("UnknownLeavesRecordUnchanged", func(t *testing.T) {
		_, err := s.SetModel(ctx, conversation.UID, "bogus-model")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownModel))

		got, err := s.GetConversation(ctx, conversation.UID)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", got.ModelID)
	})
}

func TestSetLanguage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conversation, err := s.CreateConversation(ctx, "")
	require.NoError(t, err)

	t.Run("Canonicalized", func(t *testing.T) {
		updated, err := s.SetLanguage(ctx, conversation.UID, "ES")
		require.NoError(t, err)
		assert.Equal(t, "es", updated.PreferredLanguage)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := s.SetLanguage(ctx, conversation.UID, "!!")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidArgument))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.SetLanguage(ctx, "missing", "fr")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
	})
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.CreateConversation(ctx, "")
	require.NoError(t, err)
	_, err = s.AppendTurns(ctx, first.UID, store.Turn{Role: store.RoleUser, Text: "hi", Language: "en"})
	require.NoError(t, err)
	second, err := s.CreateConversation(ctx, "")
	require.NoError(t, err)

	summaries, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, summary := range summaries {
		if summary.UID == first.UID {
			assert.Equal(t, 1, summary.TurnCount)
		}
	}

	existed, err := s.DeleteConversation(ctx, second.UID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.DeleteConversation(ctx, second.UID)
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = s.GetConversation(ctx, second.UID)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotFound))
}

func TestCallerGetsCopies(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	conversation, err := s.CreateConversation(ctx, "")
	require.NoError(t, err)
	_, err = s.AppendTurns(ctx, conversation.UID, store.Turn{Role: store.RoleUser, Text: "original", Language: "en"})
	require.NoError(t, err)

	got, err := s.GetConversation(ctx, conversation.UID)
	require.NoError(t, err)
	got.Turns[0].Text = "mutated"

	again, err := s.GetConversation(ctx, conversation.UID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Turns[0].Text)
}

func TestModelRegistry(t *testing.T) {
	t.Run("Builtins", func(t *testing.T) {
		registry := store.NewModelRegistry(nil)
		assert.True(t, registry.Has("gpt-4o-mini"))
		assert.False(t, registry.Has(""))

		descriptor, ok := registry.Get("llama-3.1-8b-instant")
		require.True(t, ok)
		assert.Equal(t, "groq", descriptor.Provider)
		assert.Positive(t, descriptor.MaxTokens)
	})

	t.Run("ExtrasAndOverrides", func(t *testing.T) {
		registry := store.NewModelRegistry([]store.ModelDescriptor{
			{ID: "local-llama", Provider: "ollama"},
			{ID: "gpt-4o", Provider: "azure", MaxTokens: 100000},
		})

		descriptor, ok := registry.Get("local-llama")
		require.True(t, ok)
		assert.Equal(t, 8192, descriptor.MaxTokens)

		descriptor, _ = registry.Get("gpt-4o")
		assert.Equal(t, "azure", descriptor.Provider)
	})

	t.Run("ListSorted", func(t *testing.T) {
		registry := store.NewModelRegistry(nil)
		list := registry.List()
		require.NotEmpty(t, list)
		for i := 1; i < len(list); i++ {
			assert.Less(t, list[i-1].ID, list[i].ID)
		}
	})
}
