package transport

import (
	"fmt"
	"net/http"

	"github.com/vk/xfiber/internal/registry"
)

// Protocols accepted for the connection.
const (
	ProtocolPlain  = "ws"
	ProtocolSecure = "wss"
)

// Config is resolved once by Init and never re-read.
type Config struct {
	Enable    bool
	Protocol  string
	Host      string
	Port      int
	Namespace string
	Refresh   RefreshConfig
}

// RefreshConfig describes the token refresh endpoint.
type RefreshConfig struct {
	URL    string
	Method string
}

// DefaultConfig returns the built-in connection settings.
func DefaultConfig() Config {
	return Config{
		Enable:    false,
		Protocol:  ProtocolPlain,
		Host:      "0.0.0.0",
		Port:      11001,
		Namespace: "/",
		Refresh: RefreshConfig{
			URL:    "v1/update-token",
			Method: http.MethodPatch,
		},
	}
}

// LoadConfig reads the adapters.ws.* keys from d over DefaultConfig.
func LoadConfig(d registry.Discovery) Config {
	def := DefaultConfig()
	if d == nil {
		return def
	}
	return Config{
		Enable:    d.GetBool("adapters.ws.enable", def.Enable),
		Protocol:  d.GetString("adapters.ws.connect.protocol", def.Protocol),
		Host:      d.GetString("adapters.ws.connect.host", def.Host),
		Port:      d.GetInt("adapters.ws.connect.port", def.Port),
		Namespace: d.GetString("adapters.ws.connect.namespace", def.Namespace),
		Refresh: RefreshConfig{
			URL:    d.GetString("adapters.ws.refresh.url", def.Refresh.URL),
			Method: d.GetString("adapters.ws.refresh.method", def.Refresh.Method),
		},
	}
}

// URL returns the connection address.
func (c Config) URL() string {
	return fmt.Sprintf("%s://%s:%d", c.Protocol, c.Host, c.Port)
}
