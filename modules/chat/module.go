// Package chat is the room chat business module. Its manifest.hcl binds the
// handlers registered here to the "chat" service.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/vk/xfiber/internal/ctxlog"
	"github.com/vk/xfiber/internal/handlers"
	"github.com/vk/xfiber/internal/registry"
)

const (
	service = "chat"
	domain  = "room"

	messagesKey = "messages"
)

// ErrEmptyRoom is returned when a message carries no room id.
var ErrEmptyRoom = errors.New("chat: message has no room id")

// Module implements the handlers.Module interface for this package.
type Module struct{}

// Message is a single chat line.
type Message struct {
	RoomID string `json:"roomId" mapstructure:"roomId" jsonschema:"required,minLength=1"`
	Text   string `json:"text" mapstructure:"text" jsonschema:"required,minLength=1,maxLength=2000"`
	Author string `json:"author,omitempty" mapstructure:"author"`
	SentAt string `json:"sentAt,omitempty" mapstructure:"sentAt"`
}

// HistoryArgs are the optional arguments of the history controller.
type HistoryArgs struct {
	Limit int `mapstructure:"limit"`
}

func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func record(m Message) map[string]any {
	return map[string]any{
		"roomId": m.RoomID,
		"text":   m.Text,
		"author": m.Author,
		"sentAt": m.SentAt,
	}
}

func validate(agents registry.Agents, args any) error {
	validators, err := agents.Schema.GetValidator(service, domain)
	if err != nil {
		return err
	}
	schema, err := validators.Invoke("message")
	if err != nil {
		return err
	}
	return schema.Validate(args)
}

func appendMessage(agents registry.Agents, m Message) (int, error) {
	st, err := agents.Schema.GetStore(service, domain)
	if err != nil {
		return 0, err
	}
	existing, _ := st.Get(messagesKey)
	list, _ := existing.([]any)
	list = append(list, record(m))
	if err := st.Set(messagesKey, list); err != nil {
		return 0, fmt.Errorf("failed to store message: %w", err)
	}
	return len(list), nil
}

func messages(agents registry.Agents) ([]Message, error) {
	st, err := agents.Schema.GetStore(service, domain)
	if err != nil {
		return nil, err
	}
	raw, _ := st.Get(messagesKey)
	var out []Message
	if err := decode(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode stored messages: %w", err)
	}
	return out, nil
}

// OnSend validates a message, appends it to the room history and publishes
// it to the room.
func OnSend(ctx context.Context, agents registry.Agents, call *registry.CallContext, args any) (any, error) {
	logger := ctxlog.FromContext(ctx)
	if err := validate(agents, args); err != nil {
		return nil, err
	}
	var m Message
	if err := decode(args, &m); err != nil {
		return nil, err
	}
	if m.RoomID == "" {
		return nil, ErrEmptyRoom
	}
	if m.Author == "" {
		if name, ok := call.User["name"].(string); ok {
			m.Author = name
		}
	}
	m.SentAt = time.Now().UTC().Format(time.RFC3339)

	count, err := appendMessage(agents, m)
	if err != nil {
		return nil, err
	}
	logger.Debug("Message stored.", "room", m.RoomID, "count", count)

	err = agents.Fn.WS().SendToRoom(m.RoomID, registry.Message{
		Service: service,
		Domain:  domain,
		Event:   "message",
		Scope:   call.Scope,
		Data:    record(m),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish message: %w", err)
	}
	return m, nil
}

// OnHistory returns the stored messages, newest last.
func OnHistory(_ context.Context, agents registry.Agents, _ *registry.CallContext, args any) (any, error) {
	var opts HistoryArgs
	if args != nil {
		if err := decode(args, &opts); err != nil {
			return nil, err
		}
	}
	list, err := messages(agents)
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(list) > opts.Limit {
		list = list[len(list)-opts.Limit:]
	}
	return list, nil
}

// OnMessage stores a message pushed by the server.
func OnMessage(ctx context.Context, agents registry.Agents, _ *registry.CallContext, data any) (any, error) {
	var m Message
	if err := decode(data, &m); err != nil {
		return nil, err
	}
	if m.RoomID == "" {
		return nil, ErrEmptyRoom
	}
	if _, err := appendMessage(agents, m); err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("Message received.", "room", m.RoomID, "author", m.Author)
	return m, nil
}

// MessageSchema validates outgoing messages.
func MessageSchema(builder registry.SchemaBuilder, _ registry.Localization) (registry.Schema, error) {
	return builder.Reflect(&Message{})
}

// Summary renders the localized message count of the room.
// props may carry the language tag; the default language is used otherwise.
func Summary(agents registry.Agents, _ registry.ViewContext, props any) (any, error) {
	list, err := messages(agents)
	if err != nil {
		return nil, err
	}
	language, _ := props.(string)
	return agents.Schema.GetResource(service, domain, "summary", map[string]string{
		"count": strconv.Itoa(len(list)),
	}, language)
}

// Format renders a message as a single line.
func Format(m Message) string {
	if m.Author == "" {
		return m.Text
	}
	return fmt.Sprintf("[%s] %s", m.Author, m.Text)
}

// Initial is the initial state of the room store.
func Initial() map[string]any {
	return map[string]any{messagesKey: []any{}}
}

// Register registers the handlers with the handler table.
func (m *Module) Register(h *handlers.Handlers) {
	slog.Debug("Registering chat module.")
	h.RegisterController("chat.room.send", OnSend)
	h.RegisterController("chat.room.history", OnHistory)
	h.RegisterEmitter("chat.room.onMessage", OnMessage)
	h.RegisterValidator("chat.room.message", MessageSchema)
	h.RegisterView("chat.room.summary", Summary)
	h.RegisterHelper("chat.room.format", Format)
	h.RegisterStore("chat.room.initial", Initial)
}
