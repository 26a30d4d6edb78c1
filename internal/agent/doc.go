// Package agent builds the capability agents handed to every handler
// invocation: the functionality agent (configuration, real-time channel,
// HTTP routes, storage areas, authentication tokens) and the schema agent
// (access to other registered business modules).
package agent
