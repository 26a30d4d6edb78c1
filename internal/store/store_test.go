package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/xfiber/internal/registry"
	"github.com/vk/xfiber/internal/storage"
)

func servicesWith(store *registry.StoreDescriptor) registry.Services {
	return registry.Services{
		"chat": registry.Domains{
			"room":   &registry.Documents{Store: store},
			"member": &registry.Documents{},
		},
	}
}

func TestService_CreatesStoresAndRoot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	i18n := registry.I18n{DefaultLanguage: "en", FallbackLanguage: "en", SupportedLanguages: []string{"en"}}
	svc := NewService(storage.NewMemory(), storage.NewMemory(), i18n, nil)

	_, err := svc.GetStore("chat", "room")
	require.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, svc.Init(ctx, servicesWith(&registry.StoreDescriptor{
		Persistence: registry.PersistenceVanish,
		Initial:     func() map[string]any { return map[string]any{"messages": []any{}} },
	})))

	st, err := svc.GetStore("chat", "room")
	require.NoError(t, err)
	v, ok := st.Get("messages")
	assert.True(t, ok)
	assert.Equal(t, []any{}, v)

	_, err = svc.GetStore("chat", "member")
	assert.ErrorIs(t, err, ErrStoreNotFound, "domains without descriptor get no store")

	require.NotNil(t, svc.RootStore())
	assert.Equal(t, "en", svc.RootStore().I18n.DefaultLanguage)

	svc.Destroy()
	_, err = svc.GetStore("chat", "room")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Nil(t, svc.RootStore())
}

func TestService_PersistedStoreSurvivesRecreation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := storage.NewMemory()
	desc := &registry.StoreDescriptor{Persistence: registry.PersistencePersist, Storage: registry.StorageLocal, Hydrate: true}

	first := NewService(local, storage.NewMemory(), registry.I18n{}, nil)
	require.NoError(t, first.Init(ctx, servicesWith(desc)))
	st, err := first.GetStore("chat", "room")
	require.NoError(t, err)
	require.NoError(t, st.Set("draft", "hello"))

	second := NewService(local, storage.NewMemory(), registry.I18n{}, nil)
	require.NoError(t, second.Init(ctx, servicesWith(desc)))
	st, err = second.GetStore("chat", "room")
	require.NoError(t, err)
	v, ok := st.Get("draft")
	assert.True(t, ok)
	assert.Equal(t, "hello", v)
}

func TestService_SkipHydrationUntilRehydrate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	session := storage.NewMemory()
	desc := &registry.StoreDescriptor{Persistence: registry.PersistencePersist, Storage: registry.StorageSession}

	first := NewService(storage.NewMemory(), session, registry.I18n{}, nil)
	require.NoError(t, first.Init(ctx, servicesWith(desc)))
	st, _ := first.GetStore("chat", "room")
	require.NoError(t, st.Set("count", 2))

	second := NewService(storage.NewMemory(), session, registry.I18n{}, nil)
	require.NoError(t, second.Init(ctx, servicesWith(desc)))
	st, _ = second.GetStore("chat", "room")
	_, ok := st.Get("count")
	assert.False(t, ok, "hydration is skipped by default")

	require.NoError(t, st.Rehydrate(ctx))
	v, ok := st.Get("count")
	assert.True(t, ok)
	assert.Equal(t, float64(2), v, "values come back through JSON")
}

func TestService_VersionMismatchKeepsInitialState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	local := storage.NewMemory()

	v1 := &registry.StoreDescriptor{Storage: registry.StorageLocal, Version: 1, Hydrate: true}
	first := NewService(local, nil, registry.I18n{}, nil)
	require.NoError(t, first.Init(ctx, servicesWith(v1)))
	st, _ := first.GetStore("chat", "room")
	require.NoError(t, st.Set("old", true))

	v2 := &registry.StoreDescriptor{Storage: registry.StorageLocal, Version: 2, Hydrate: true}
	second := NewService(local, nil, registry.I18n{}, nil)
	require.NoError(t, second.Init(ctx, servicesWith(v2)))
	st, _ = second.GetStore("chat", "room")
	assert.Empty(t, st.State())
}

func TestService_RejectsUnknownKinds(t *testing.T) {
	t.Parallel()
	svc := NewService(storage.NewMemory(), storage.NewMemory(), registry.I18n{}, nil)

	err := svc.Init(context.Background(), servicesWith(&registry.StoreDescriptor{Persistence: "forever"}))
	assert.ErrorContains(t, err, "unknown persistence kind")
}

func TestStore_VanishNeverPersists(t *testing.T) {
	t.Parallel()
	local := storage.NewMemory()
	svc := NewService(local, local, registry.I18n{}, nil)
	require.NoError(t, svc.Init(context.Background(), servicesWith(&registry.StoreDescriptor{Persistence: registry.PersistenceVanish})))

	st, _ := svc.GetStore("chat", "room")
	require.NoError(t, st.Set("k", "v"))
	require.NoError(t, st.Reset())
	assert.Empty(t, st.State())

	_, ok, err := local.Load(context.Background(), Key("chat", "room"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// failingBackend is a memory backend whose saves fail while broken is set.
type failingBackend struct {
	*storage.Memory
	broken bool
}

func (b *failingBackend) Save(ctx context.Context, key string, value []byte) error {
	if b.broken {
		return errors.New("disk full")
	}
	return b.Memory.Save(ctx, key, value)
}

func TestStore_FailedPersistKeepsState(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	backend := &failingBackend{Memory: storage.NewMemory()}
	st := newStore("chat.room", registry.StoreDescriptor{
		Initial: func() map[string]any { return map[string]any{"count": 1} },
	}, backend, nil)
	require.NoError(t, st.Set("name", "lobby"))
	backend.broken = true

	// --- Act ---
	setErr := st.Set("name", "attic")
	updateErr := st.Update(func(state map[string]any) {
		state["count"] = 2
		delete(state, "name")
	})
	resetErr := st.Reset()

	// --- Assert ---
	assert.ErrorContains(t, setErr, "disk full")
	assert.ErrorContains(t, updateErr, "persist store chat.room")
	assert.Error(t, resetErr)
	assert.Equal(t, map[string]any{"count": 1, "name": "lobby"}, st.State())

	backend.broken = false
	require.NoError(t, st.Set("name", "attic"))
	name, _ := st.Get("name")
	assert.Equal(t, "attic", name)
}
