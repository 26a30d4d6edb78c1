package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/xfiber/internal/storage"
	"github.com/vk/xfiber/internal/transport"
	"github.com/vk/xfiber/modules/chat"
)

const bundledModules = "../../modules"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xfiber.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{})
	assert.ErrorContains(t, err, "ModulesPath")

	_, err = NewConfig(Config{ModulesPath: "modules", HealthcheckPort: 70000})
	assert.ErrorContains(t, err, "out of range")

	cfg, err := NewConfig(Config{ModulesPath: "modules", HealthcheckPort: 8080})
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HealthcheckPort)
}

func TestApp_StartWiresBundledModules(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	a, logs := SetupAppTest(t, &Config{ModulesPath: bundledModules})

	// --- Act ---
	err := a.Start(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Application started.")
	assert.Equal(t, transport.StateDisconnected, a.Engine().State(), "the websocket adapter is disabled by default")

	proxy, err := a.Dispatcher().GetController("chat", "room")
	require.NoError(t, err)
	assert.Equal(t, []string{"history", "send"}, proxy.Names())

	_, err = proxy.Invoke(context.Background(), "send", map[string]any{"roomId": "lobby", "text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Engine().Queued(), "messages wait for the connection")

	summary, err := a.Dispatcher().View("chat", "room", "summary", "de")
	require.NoError(t, err)
	assert.Equal(t, "1 Nachrichten", summary)
}

func TestNewApp_PanicsOnInvalidManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.hcl"), []byte(`service "chat" {`), 0o600))

	assert.Panics(t, func() {
		NewApp(&SafeBuffer{}, &Config{ModulesPath: dir}, &chat.Module{})
	})
}

func TestNewApp_PanicsOnUnknownDriver(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		ModulesPath: bundledModules,
		ConfigFile:  writeConfig(t, "[adapters.ws]\ndriver = \"pigeon\"\n"),
	}

	assert.PanicsWithError(t, `unknown websocket driver "pigeon": must be "websocket" or "socketio"`, func() {
		NewApp(&SafeBuffer{}, cfg)
	})
}

func TestApp_StartRejectsInvalidProtocol(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		ModulesPath: bundledModules,
		ConfigFile:  writeConfig(t, "[adapters.ws]\nenable = true\n\n[adapters.ws.connect]\nprotocol = \"http\"\n"),
	}
	a, _ := SetupAppTest(t, cfg)

	err := a.Start(context.Background())

	assert.ErrorContains(t, err, "Websocket protocol must be")
}

func TestApp_LocalStoresSurviveRestart(t *testing.T) {
	// --- Arrange ---
	db := filepath.Join(t.TempDir(), "state.db")
	cfgFile := writeConfig(t, "[strategies.database]\nenable = true\nname = \""+filepath.ToSlash(db)+"\"\n")
	ctx := context.Background()

	first := NewApp(&SafeBuffer{}, &Config{ModulesPath: bundledModules, ConfigFile: cfgFile})
	require.NoError(t, first.Start(ctx))
	proxy, err := first.Dispatcher().GetController("chat", "room")
	require.NoError(t, err)
	_, err = proxy.Invoke(ctx, "send", map[string]any{"roomId": "lobby", "text": "kept"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// --- Act ---
	second, _ := SetupAppTest(t, &Config{ModulesPath: bundledModules, ConfigFile: cfgFile})
	require.NoError(t, second.Start(ctx))
	proxy, err = second.Dispatcher().GetController("chat", "room")
	require.NoError(t, err)
	history, err := proxy.Invoke(ctx, "history", nil)

	// --- Assert ---
	require.NoError(t, err)
	list, ok := history.([]chat.Message)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "kept", list[0].Text)
}

func TestHealthRouter(t *testing.T) {
	t.Parallel()
	a, _ := SetupAppTest(t, &Config{ModulesPath: bundledModules})
	router := a.healthRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
	assert.Equal(t, "disconnected", rec.Header().Get("X-Transport-State"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	a, logs := SetupAppTest(t, &Config{ModulesPath: bundledModules})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := a.Dispatcher().Services()
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Contains(t, logs.String(), "Shutting down.")
	assert.Equal(t, transport.StateClosed, a.Engine().State())
}

// stuckBackend is a memory backend that fails to close.
type stuckBackend struct {
	*storage.Memory
}

func (stuckBackend) Close() error { return errors.New("session backend stuck") }

func TestRun_ReportsCloseErrors(t *testing.T) {
	t.Parallel()

	t.Run("after a failed start", func(t *testing.T) {
		t.Parallel()
		cfg := &Config{
			ModulesPath: bundledModules,
			ConfigFile:  writeConfig(t, "[adapters.ws]\nenable = true\n\n[adapters.ws.connect]\nprotocol = \"http\"\n"),
		}
		a, _ := SetupAppTest(t, cfg)
		a.session = stuckBackend{Memory: storage.NewMemory()}

		err := a.Run(context.Background())

		assert.ErrorContains(t, err, "Websocket protocol must be")
		assert.ErrorContains(t, err, "session backend stuck")
	})

	t.Run("after a clean shutdown", func(t *testing.T) {
		t.Parallel()
		a, _ := SetupAppTest(t, &Config{ModulesPath: bundledModules})
		a.session = stuckBackend{Memory: storage.NewMemory()}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := a.Run(ctx)

		assert.EqualError(t, err, "session backend stuck")
	})
}
