package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "XFIBER"

// schemaPrefix scopes the keys business modules read through their agents.
const schemaPrefix = "applications."

// Discovery reads configuration values with caller-supplied defaults.
type Discovery struct {
	v      *viper.Viper
	prefix string
}

// Options configures Discovery construction.
type Options struct {
	// File is an optional configuration file path. Empty means env only.
	File string
	// EnvPrefix overrides EnvPrefix, mainly for tests.
	EnvPrefix string
}

// New builds a Discovery from the given options.
func New(opts Options) (*Discovery, error) {
	v := viper.New()
	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.File, err)
		}
	}
	return &Discovery{v: v}, nil
}

// FromViper wraps an existing viper instance.
func FromViper(v *viper.Viper) *Discovery {
	return &Discovery{v: v}
}

// Scoped returns a Discovery that resolves every key under the
// "applications." namespace reserved for business modules.
func (d *Discovery) Scoped() *Discovery {
	return &Discovery{v: d.v, prefix: schemaPrefix}
}

func (d *Discovery) key(name string) string {
	return d.prefix + name
}

// GetMandatory returns the value of name or an error when it is unset or empty.
func (d *Discovery) GetMandatory(name string) (string, error) {
	k := d.key(name)
	if !d.v.IsSet(k) || d.v.GetString(k) == "" {
		return "", fmt.Errorf("environment variable %q not found", k)
	}
	return d.v.GetString(k), nil
}

// GetString returns the string value of name or def.
func (d *Discovery) GetString(name, def string) string {
	k := d.key(name)
	if !d.v.IsSet(k) {
		return def
	}
	return d.v.GetString(k)
}

// GetInt returns the integer value of name or def. Values that do not parse
// as integers resolve to def.
func (d *Discovery) GetInt(name string, def int) int {
	k := d.key(name)
	if !d.v.IsSet(k) {
		return def
	}
	n, err := toInt(d.v.Get(k))
	if err != nil {
		return def
	}
	return n
}

// GetBool returns the boolean value of name or def.
func (d *Discovery) GetBool(name string, def bool) bool {
	k := d.key(name)
	if !d.v.IsSet(k) {
		return def
	}
	return d.v.GetBool(k)
}

// GetStringSlice returns the list value of name or def. A comma separated
// string, as environment variables provide, is split into its elements.
func (d *Discovery) GetStringSlice(name string, def []string) []string {
	k := d.key(name)
	if !d.v.IsSet(k) {
		return def
	}
	if s, ok := d.v.Get(k).(string); ok {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return d.v.GetStringSlice(k)
}

// Set overrides a value at runtime, mainly for tests and CLI flags.
func (d *Discovery) Set(name string, value any) {
	d.v.Set(d.key(name), value)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		var out int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &out); err != nil {
			return 0, err
		}
		return out, nil
	}
	return 0, fmt.Errorf("unsupported integer value %T", v)
}
