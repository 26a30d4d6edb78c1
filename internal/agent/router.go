package agent

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/vk/xfiber/internal/registry"
)

// Route request defaults.
const (
	DefaultRouteScope   = "public:route"
	DefaultRouteMethod  = http.MethodGet
	DefaultRouteVersion = "v1"
	privateRouteScope   = "private:route"
)

// TokenSource yields the bearer token attached to private routes.
type TokenSource interface {
	AccessToken() string
}

// Router performs HTTP requests against {base}/{version}/{service}/{domain}/{route}.
type Router struct {
	client *http.Client
	base   string
	tokens TokenSource
	logger *slog.Logger
}

// NewRouter creates a Router. tokens may be nil.
func NewRouter(client *http.Client, base string, tokens TokenSource, logger *slog.Logger) *Router {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{client: client, base: strings.TrimRight(base, "/"), tokens: tokens, logger: logger}
}

// BaseURL composes the base address from the adapters.http.connect keys.
func BaseURL(d registry.Discovery) string {
	return fmt.Sprintf("%s://%s:%d",
		d.GetString("adapters.http.connect.protocol", "http"),
		d.GetString("adapters.http.connect.host", "0.0.0.0"),
		d.GetInt("adapters.http.connect.port", 11000),
	)
}

// Request implements registry.Router. The response body is decoded as JSON
// when the server says so and returned as a string otherwise.
func (r *Router) Request(ctx context.Context, service, domain, route string, opts registry.RequestOptions) (*registry.Response, error) {
	if opts.Method == "" {
		opts.Method = DefaultRouteMethod
	}
	if opts.Scope == "" {
		opts.Scope = DefaultRouteScope
	}
	if opts.Version == "" {
		opts.Version = DefaultRouteVersion
	}

	target := r.url(service, domain, route, opts)

	var body io.Reader
	if opts.Data != nil {
		raw, err := json.Marshal(opts.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request data: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, values := range opts.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.Scope == privateRouteScope && r.tokens != nil {
		if token := r.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	r.logger.Debug("Making HTTP request.", "method", opts.Method, "url", target, "scope", opts.Scope)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := &registry.Response{Status: resp.StatusCode, Headers: resp.Header}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") && len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.Data); err != nil {
			return nil, fmt.Errorf("failed to decode response body: %w", err)
		}
	} else if len(raw) > 0 {
		out.Data = string(raw)
	}
	return out, nil
}

func (r *Router) url(service, domain, route string, opts registry.RequestOptions) string {
	// Longer names first so :idx is never clobbered by :id.
	names := slices.SortedFunc(maps.Keys(opts.Params), func(a, b string) int {
		return cmp.Or(len(b)-len(a), strings.Compare(a, b))
	})
	for _, name := range names {
		route = strings.ReplaceAll(route, ":"+name, url.PathEscape(opts.Params[name]))
	}
	target := strings.Join([]string{r.base, opts.Version, service, domain, strings.TrimLeft(route, "/")}, "/")
	if len(opts.Queries) > 0 {
		q := url.Values{}
		for k, v := range opts.Queries {
			q.Set(k, v)
		}
		target += "?" + q.Encode()
	}
	return target
}
