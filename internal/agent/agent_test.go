package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/xfiber/internal/dispatcher"
	"github.com/vk/xfiber/internal/events"
	"github.com/vk/xfiber/internal/registry"
	"github.com/vk/xfiber/internal/storage"
	"github.com/vk/xfiber/internal/store"
)

var (
	_ registry.SchemaAgent   = (*Schema)(nil)
	_ registry.ControllerAPI = (*dispatcher.ControllerProxy)(nil)
	_ registry.ValidatorAPI  = (*dispatcher.ValidatorProxy)(nil)
)

func TestAuth_TokenPayloadAndStorage(t *testing.T) {
	// --- Arrange ---
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "user-1",
		"role": "admin",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	area := storage.NewArea(storage.NewMemory(), "test.")
	auth := NewAuth(area, nil)

	var payload struct {
		Sub  string `json:"sub"`
		Role string `json:"role"`
	}
	assert.ErrorIs(t, auth.TokenPayload(&payload), ErrNoToken)

	// --- Act ---
	auth.SetTokens(token, "refresh-1")

	// --- Assert ---
	require.NoError(t, auth.TokenPayload(&payload))
	assert.Equal(t, "user-1", payload.Sub)
	assert.Equal(t, "admin", payload.Role)

	restored := NewAuth(area, nil)
	require.NoError(t, restored.Restore(context.Background()))
	assert.Equal(t, token, restored.AccessToken())
	assert.Equal(t, "refresh-1", restored.RefreshToken())

	restored.SetTokens("not-a-jwt", "")
	assert.Error(t, restored.TokenPayload(&payload))
}

func TestRouter_Request(t *testing.T) {
	// --- Arrange ---
	var mu sync.Mutex
	var seen *http.Request
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = r.Clone(context.Background())
		body, _ = io.ReadAll(r.Body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	auth := NewAuth(nil, nil)
	auth.SetTokens("tok", "")
	router := NewRouter(srv.Client(), srv.URL+"/", auth, nil)

	// --- Act ---
	resp, err := router.Request(context.Background(), "chat", "room", "messages/:id", registry.RequestOptions{
		Method:  http.MethodPost,
		Scope:   "private:route",
		Params:  map[string]string{"id": "42"},
		Queries: map[string]string{"limit": "10"},
		Data:    map[string]any{"text": "hi"},
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, map[string]any{"ok": true}, resp.Data)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPost, seen.Method)
	assert.Equal(t, "/v1/chat/room/messages/42", seen.URL.Path)
	assert.Equal(t, "10", seen.URL.Query().Get("limit"))
	assert.Equal(t, "Bearer tok", seen.Header.Get("Authorization"))
	assert.JSONEq(t, `{"text":"hi"}`, string(body))
}

func TestRouter_Defaults(t *testing.T) {
	var method, path, authz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, authz = r.Method, r.URL.Path, r.Header.Get("Authorization")
		_, _ = w.Write([]byte("plain"))
	}))
	defer srv.Close()

	auth := NewAuth(nil, nil)
	auth.SetTokens("tok", "")
	resp, err := NewRouter(srv.Client(), srv.URL, auth, nil).Request(context.Background(), "chat", "room", "list", registry.RequestOptions{})

	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, method)
	assert.Equal(t, "/v1/chat/room/list", path)
	assert.Empty(t, authz, "public routes carry no token")
	assert.Equal(t, "plain", resp.Data)
}

func TestRouter_OverlappingParamNames(t *testing.T) {
	router := NewRouter(nil, "http://api.local/", nil, nil)
	opts := registry.RequestOptions{
		Version: "v1",
		Params:  map[string]string{"id": "7", "idx": "3", "i": "x"},
	}

	// Map order varies, the result must not.
	for range 50 {
		got := router.url("chat", "room", "items/:idx/:id/:i", opts)
		require.Equal(t, "http://api.local/v1/chat/room/items/3/7/x", got)
	}
}

// recordingRealtime captures outbound messages.
type recordingRealtime struct {
	sent []registry.Message
}

func (r *recordingRealtime) On(string, string, string, events.Listener) events.Subscription {
	return events.Subscription{}
}
func (r *recordingRealtime) Once(string, string, string, events.Listener) events.Subscription {
	return events.Subscription{}
}
func (r *recordingRealtime) SendToSession(_ string, m registry.Message) error {
	r.sent = append(r.sent, m)
	return nil
}
func (r *recordingRealtime) SendToRoom(_ string, m registry.Message) error {
	r.sent = append(r.sent, m)
	return nil
}
func (r *recordingRealtime) SendToService(m registry.Message) error {
	r.sent = append(r.sent, m)
	return nil
}

func TestAgents_FromHandler(t *testing.T) {
	// --- Arrange ---
	ctx := context.Background()
	loader := registry.NewLoader(nil)
	loader.Init()
	require.NoError(t, loader.SetBusinessLogic([]registry.ServiceStructure{
		registry.Service("chat",
			registry.Domain("room", registry.DocumentsStructure{
				Controller: map[string]registry.ControllerDescriptor{
					"post": registry.Controller(registry.ScopePublic, func(ctx context.Context, agents registry.Agents, _ *registry.CallContext, args any) (any, error) {
						st, err := agents.Schema.GetStore("chat", "room")
						if err != nil {
							return nil, err
						}
						if err := st.Set("last", args); err != nil {
							return nil, err
						}
						members, err := agents.Schema.GetController("chat", "member")
						if err != nil {
							return nil, err
						}
						count, err := members.Invoke(ctx, "count", nil)
						if err != nil {
							return nil, err
						}
						err = agents.Fn.WS().SendToRoom("r-1", registry.Message{Service: "chat", Domain: "room", Event: "posted", Data: args})
						return count, err
					}),
				},
				Store: &registry.StoreDescriptor{Persistence: registry.PersistenceVanish},
			}),
			registry.Domain("member", registry.DocumentsStructure{
				Controller: map[string]registry.ControllerDescriptor{
					"count": registry.Controller(registry.ScopePublic, func(context.Context, registry.Agents, *registry.CallContext, any) (any, error) {
						return 3, nil
					}),
				},
			}),
		),
	}))
	services, err := loader.Services()
	require.NoError(t, err)

	stores := store.NewService(storage.NewMemory(), storage.NewMemory(), registry.I18n{DefaultLanguage: "en"}, nil)
	require.NoError(t, stores.Init(ctx, services))

	d := dispatcher.New(dispatcher.Options{Registry: loader, Roots: stores})
	rt := &recordingRealtime{}
	d.Bind(registry.Agents{
		Fn:     NewFunctionality(FunctionalityOptions{WS: rt}),
		Schema: NewSchema(d, stores),
	})

	// --- Act ---
	proxy, err := d.GetController("chat", "room")
	require.NoError(t, err)
	out, err := proxy.Invoke(ctx, "post", "hello")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 3, out)
	st, err := stores.GetStore("chat", "room")
	require.NoError(t, err)
	last, _ := st.Get("last")
	assert.Equal(t, "hello", last)
	require.Len(t, rt.sent, 1)
	assert.Equal(t, "posted", rt.sent[0].Event)

	_, err = NewSchema(d, stores).GetStore("chat", "member")
	assert.ErrorIs(t, err, store.ErrStoreNotFound)
}

func TestStorageFacade(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(storage.NewArea(storage.NewMemory(), "l."), storage.NewArea(storage.NewMemory(), "s."))

	require.NoError(t, s.Local().Set(ctx, "k", "v"))
	v, ok, err := s.Local().Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok, err = s.Session().Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	raw, _ := json.Marshal(map[string]string{"a": "b"})
	require.NoError(t, s.Session().Set(ctx, "json", string(raw)))
	require.NoError(t, s.Session().Remove(ctx, "json"))
	_, ok, _ = s.Session().Get(ctx, "json")
	assert.False(t, ok)
}
