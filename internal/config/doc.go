// Package config resolves runtime configuration.
//
// Discovery layers three sources, lowest precedence first: the defaults
// supplied by each caller, an optional configuration file (toml, yaml or
// json) and environment variables. Keys are dotted paths such as
// "adapters.ws.connect.host"; the matching environment variable is the
// upper-cased path with dots replaced by underscores and the XFIBER_ prefix,
// e.g. XFIBER_ADAPTERS_WS_CONNECT_HOST.
//
// Values are resolved when a component initializes and are never re-read.
package config
