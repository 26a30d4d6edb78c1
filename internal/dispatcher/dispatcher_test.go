package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/xfiber/internal/metrics"
	"github.com/vk/xfiber/internal/registry"
	"github.com/vk/xfiber/internal/validation"
)

type fixedRoot struct{ root *registry.RootStore }

func (f fixedRoot) RootStore() *registry.RootStore { return f.root }

type staticSession map[string]any

func (s staticSession) Session(context.Context) (map[string]any, error) { return s, nil }

func newTestDispatcher(t *testing.T, structures ...registry.ServiceStructure) (*Dispatcher, *registry.Loader) {
	t.Helper()
	loader := registry.NewLoader(nil)
	loader.Init()
	require.NoError(t, loader.SetBusinessLogic(structures))

	root := &registry.RootStore{I18n: registry.I18n{DefaultLanguage: "en", FallbackLanguage: "en", SupportedLanguages: []string{"en", "de"}}}
	d := New(Options{
		Registry: loader,
		Roots:    fixedRoot{root: root},
		Sessions: staticSession{"id": "u-1"},
		Builder:  validation.NewBuilder(),
	})
	return d, loader
}

func chatService(controller map[string]registry.ControllerDescriptor) registry.ServiceStructure {
	return registry.Service("chat",
		registry.Domain("room", registry.DocumentsStructure{
			Controller: controller,
			Dictionary: []registry.DictionaryStructure{
				registry.NewDictionary(registry.Dictionary{
					"greeting": "hello {{name}}",
					"errors": map[string]any{
						"short":  "too short, {{name}}",
						"nested": map[string]any{"deep": "deep"},
					},
				}, "en", "en-US"),
				registry.NewDictionary(registry.Dictionary{"greeting": "hallo {{name}}"}, "de"),
			},
			Views: []registry.ViewStructure{
				registry.View("title", func(_ registry.Agents, vc registry.ViewContext, props any) (any, error) {
					return props.(string) + "/" + vc.RootStore.I18n.DefaultLanguage, nil
				}),
			},
			Validator: map[string]registry.ValidatorHandler{
				"message": func(b registry.SchemaBuilder, loc registry.Localization) (registry.Schema, error) {
					title, err := loc.GetResource("chat", "room", "greeting", map[string]string{"name": "schema"}, "en")
					if err != nil {
						return nil, err
					}
					return b.Compile(`{"type":"object","title":"` + title + `","required":["text"]}`)
				},
			},
			Helper: map[string]any{"upper": func(s string) string { return s }},
		}),
	)
}

func TestController_InvokeByScope(t *testing.T) {
	// --- Arrange ---
	var got []*registry.CallContext
	handler := func(_ context.Context, _ registry.Agents, call *registry.CallContext, args any) (any, error) {
		got = append(got, call)
		return args, nil
	}
	d, _ := newTestDispatcher(t, chatService(map[string]registry.ControllerDescriptor{
		"list":   registry.Controller(registry.ScopePublic, handler),
		"delete": registry.Controller(registry.ScopePrivate, handler),
	}))

	// --- Act ---
	proxy, err := d.GetController("chat", "room")
	require.NoError(t, err)
	listed, err := proxy.Invoke(context.Background(), "list", 7)
	require.NoError(t, err)
	_, err = proxy.Invoke(context.Background(), "delete", nil)
	require.NoError(t, err)

	// --- Assert ---
	assert.Equal(t, []string{"delete", "list"}, proxy.Names())
	assert.Equal(t, 7, listed)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].User, "public calls carry no user")
	assert.Equal(t, "en", got[0].Store.I18n.DefaultLanguage)
	assert.Equal(t, map[string]any{"id": "u-1"}, got[1].User)
}

func TestController_HandlerErrorsAndPanics(t *testing.T) {
	boom := errors.New("boom")
	reg := prometheus.NewRegistry()
	d, _ := newTestDispatcher(t, chatService(map[string]registry.ControllerDescriptor{
		"fail": registry.Controller(registry.ScopePublic, func(context.Context, registry.Agents, *registry.CallContext, any) (any, error) {
			return nil, boom
		}),
		"panic": registry.Controller(registry.ScopePublic, func(context.Context, registry.Agents, *registry.CallContext, any) (any, error) {
			panic("bad state")
		}),
	}))
	d.metrics = metrics.New(reg)

	proxy, err := d.GetController("chat", "room")
	require.NoError(t, err)

	_, err = proxy.Invoke(context.Background(), "fail", nil)
	assert.ErrorIs(t, err, boom)

	_, err = proxy.Invoke(context.Background(), "panic", nil)
	assert.ErrorContains(t, err, "panicked: bad state")

	assert.Equal(t, 1, testutil.CollectAndCount(d.metrics.HandlerDuration))
}

func TestNotFound_Levels(t *testing.T) {
	d, _ := newTestDispatcher(t, chatService(map[string]registry.ControllerDescriptor{
		"list": registry.Controller(registry.ScopePublic, nil),
	}))

	testCases := []struct {
		name       string
		call       func() error
		level      Level
		suggestion string
	}{
		{
			name:       "service",
			call:       func() error { _, err := d.GetController("chta", "room"); return err },
			level:      LevelService,
			suggestion: "chat",
		},
		{
			name:  "domain",
			call:  func() error { _, err := d.GetValidator("chat", "lobby"); return err },
			level: LevelDomain,
		},
		{
			name: "controller",
			call: func() error {
				p, err := d.GetController("chat", "room")
				require.NoError(t, err)
				_, err = p.Invoke(context.Background(), "lst", nil)
				return err
			},
			level:      LevelController,
			suggestion: "list",
		},
		{
			name:  "view",
			call:  func() error { _, err := d.View("chat", "room", "missing", nil); return err },
			level: LevelView,
		},
		{
			name:  "helper",
			call:  func() error { _, err := d.GetHelper("chat", "room", "lower"); return err },
			level: LevelHelper,
		},
		{
			name:  "resource",
			call:  func() error { _, err := d.GetResource("chat", "room", "farewell", nil, "en"); return err },
			level: LevelResource,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.ErrorIs(t, err, ErrNotFound)
			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, tc.level, nf.Level)
			if tc.suggestion != "" {
				assert.Equal(t, tc.suggestion, nf.Suggestion)
			}
		})
	}
}

func TestDictionary_MissingWithoutFallback(t *testing.T) {
	d, _ := newTestDispatcher(t, registry.Service("chat", registry.Domain("member", registry.DocumentsStructure{})))

	_, err := d.GetDictionary("chat", "member", "fr")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, LevelDictionary, nf.Level)
	assert.Equal(t, "fr", nf.Name)
}

func TestDictionary_FanOutAndFallback(t *testing.T) {
	d, _ := newTestDispatcher(t, chatService(nil))

	en, err := d.GetDictionary("chat", "room", "en")
	require.NoError(t, err)
	enUS, err := d.GetDictionary("chat", "room", "en-US")
	require.NoError(t, err)
	assert.Equal(t, en, enUS)

	def, err := d.GetDictionary("chat", "room", "")
	require.NoError(t, err)
	assert.Equal(t, en, def, "empty language uses the root store default")

	fr, err := d.GetDictionary("chat", "room", "fr")
	require.NoError(t, err)
	assert.Equal(t, en, fr, "missing language uses the fallback")

	de, err := d.GetDictionary("chat", "room", "de")
	require.NoError(t, err)
	assert.Equal(t, "hallo {{name}}", de["greeting"])
}

func TestGetResource(t *testing.T) {
	d, _ := newTestDispatcher(t, chatService(nil))
	subs := map[string]string{"name": "Bob"}

	testCases := []struct {
		name    string
		key     string
		lang    string
		want    string
		wantErr error
	}{
		{name: "single segment", key: "greeting", want: "hello Bob"},
		{name: "other language", key: "greeting", lang: "de", want: "hallo Bob"},
		{name: "exact nested path", key: "errors.short", want: "too short, Bob"},
		{name: "short circuit on string", key: "errors.short.extra.more", want: "too short, Bob"},
		{name: "path ends on a node", key: "errors.nested", wantErr: ErrNotString},
		{name: "missing nested key", key: "errors.long", wantErr: ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.GetResource("chat", "room", tc.key, subs, tc.lang)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidatorViewHelper(t *testing.T) {
	d, _ := newTestDispatcher(t, chatService(nil))

	validators, err := d.GetValidator("chat", "room")
	require.NoError(t, err)
	assert.Equal(t, []string{"message"}, validators.Names())

	schema, err := validators.Invoke("message")
	require.NoError(t, err)
	assert.NoError(t, schema.Validate(map[string]any{"text": "hi"}))
	assert.Error(t, schema.Validate(map[string]any{}))

	out, err := d.View("chat", "room", "title", "Lobby")
	require.NoError(t, err)
	assert.Equal(t, "Lobby/en", out)

	helper, err := d.GetHelper("chat", "room", "upper")
	require.NoError(t, err)
	assert.IsType(t, func(string) string { return "" }, helper)
}

func TestQueriesAfterDestroy(t *testing.T) {
	d, loader := newTestDispatcher(t, chatService(nil))
	loader.Destroy()

	_, err := d.GetController("chat", "room")
	assert.ErrorIs(t, err, registry.ErrNotInitialized)
	_, err = d.GetDictionary("chat", "room", "en")
	assert.ErrorIs(t, err, registry.ErrNotInitialized)
	_, err = d.GetResource("chat", "room", "greeting", nil, "")
	assert.ErrorIs(t, err, registry.ErrNotInitialized)
	assert.NotErrorIs(t, err, ErrNotFound)
}
