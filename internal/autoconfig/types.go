// Package autoconfig decodes SSE events from the auto-configuration stream
// into typed Change values, and defines the Environment data model those
// changes carry.
package autoconfig

import "fmt"

// Environment is the credential record for a single project/environment
// pair, as delivered by the auto-configuration stream.
type Environment struct {
	Path       string `json:"-"`
	ProjectKey string `json:"projKey"`
	EnvKey     string `json:"envKey"`
	EnvID      string `json:"envID"`
	MobileKey  string `json:"mobKey"`
	SDKKey     string `json:"sdkKey"`
	Version    int    `json:"version"`
}

// Describe returns a human-readable identifier for log messages.
func (e Environment) Describe() string {
	return fmt.Sprintf("environment %s (%s)", e.EnvID, e.Path)
}

// Change is a discriminated value produced by decoding a stream event.
type Change interface {
	isChange()
}

// Put is a full-snapshot replacement: every currently-live environment,
// keyed by path.
type Put struct {
	Environments map[string]Environment
}

func (Put) isChange() {}

// Patch is an upsert of a single environment at Path.
type Patch struct {
	Path        string
	Environment Environment
}

func (Patch) isChange() {}

// Delete removes the environment at Path, if its stored version is not
// greater than Version.
type Delete struct {
	Path    string
	Version int
}

func (Delete) isChange() {}

// ServerError represents a non-transport error reported by the server
// itself, distinct from an HTTP-level or connection-level failure.
type ServerError struct {
	Status  int
	Message string
}

func (ServerError) isChange() {}

func (e ServerError) Error() string {
	return fmt.Sprintf("server reported error (status %d): %s", e.Status, e.Message)
}

// Reconnect is a codec-directed signal telling the supervisor to drop and
// re-establish the connection. It isn't a failure: receiving it does not
// advance the retry backoff; like any other decoded change, it resets the
// backoff to its initial delay.
type Reconnect struct{}

func (Reconnect) isChange() {}

// envEntry is the wire representation of Environment, with its path pulled
// from the enclosing message rather than the entry body itself (except in
// the "put" snapshot, where the map key is the path).
type envEntry struct {
	ProjKey string `json:"projKey"`
	EnvKey  string `json:"envKey"`
	EnvID   string `json:"envID"`
	MobKey  string `json:"mobKey"`
	SDKKey  string `json:"sdkKey"`
	Version int    `json:"version"`
}

func (e envEntry) toEnvironment(path string) Environment {
	return Environment{
		Path:       path,
		ProjectKey: e.ProjKey,
		EnvKey:     e.EnvKey,
		EnvID:      e.EnvID,
		MobileKey:  e.MobKey,
		SDKKey:     e.SDKKey,
		Version:    e.Version,
	}
}

// putMessageData is the JSON payload of a "put" event: the server wraps the
// snapshot under a root path. A put whose path is not "/" is logged and
// ignored.
type putMessageData struct {
	Path string `json:"path"`
	Data struct {
		Environments map[string]envEntry `json:"environments"`
	} `json:"data"`
}

// patchMessageData is the JSON payload of a "patch" event.
type patchMessageData struct {
	Path string   `json:"path"`
	Data envEntry `json:"data"`
}

// deleteMessageData is the JSON payload of a "delete" event.
type deleteMessageData struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

// errorMessageData is the JSON payload of an "error" event.
type errorMessageData struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}
