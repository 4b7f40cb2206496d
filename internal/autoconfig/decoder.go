package autoconfig

import (
	"encoding/json"
	"path"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/tarqd/ldactl/internal/ldacerrors"
	"github.com/tarqd/ldactl/internal/sse"
)

// Event names recognized on the auto-configuration stream.
const (
	EventPut       = "put"
	EventPatch     = "patch"
	EventDelete    = "delete"
	EventError     = "error"
	EventReconnect = "reconnect"
)

// environmentPathPrefix is the only entity prefix this client understands.
// Patch/delete messages addressed to any other prefix are from an entity
// kind introduced after this client was built and are dropped, not treated
// as an error, so that the server can add new entity kinds without breaking
// old clients.
const environmentPathPrefix = "/environments/"

// Decoder turns sse.Event frames into Change values.
type Decoder struct {
	loggers ldlog.Loggers
}

// NewDecoder creates a Decoder.
func NewDecoder(loggers ldlog.Loggers) *Decoder {
	return &Decoder{loggers: loggers}
}

// Decode interprets a single SSE event. It returns (nil, nil) for events this
// client doesn't act on (unrecognized names are logged at debug), which the
// caller should simply not forward. A non-nil error is always a *ldacerrors.ProtocolError
// and means the event payload was malformed; the supervisor treats this as
// transient and reconnects.
func (d *Decoder) Decode(ev sse.Event) (Change, error) {
	switch ev.Name {
	case EventPut:
		var msg putMessageData
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return nil, &ldacerrors.ProtocolError{EventName: ev.Name, Cause: err}
		}
		if msg.Path != "/" {
			d.loggers.Infof("Ignoring %q event for unexpected path %q", EventPut, msg.Path)
			return nil, nil
		}
		envs := make(map[string]Environment, len(msg.Data.Environments))
		for envPath, entry := range msg.Data.Environments {
			envs[envPath] = entry.toEnvironment(envPath)
		}
		d.loggers.Infof("Received configuration for %d environment(s)", len(envs))
		return Put{Environments: envs}, nil

	case EventPatch:
		var msg patchMessageData
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return nil, &ldacerrors.ProtocolError{EventName: ev.Name, Cause: err}
		}
		if msg.Path == "" {
			return nil, &ldacerrors.ProtocolError{EventName: ev.Name, Cause: errEmptyPath}
		}
		prefix, id := path.Split(msg.Path)
		if prefix != environmentPathPrefix {
			d.loggers.Debugf("Ignoring unknown entity: %s", msg.Path)
			return nil, nil
		}
		env := msg.Data.toEnvironment(msg.Path)
		if id != env.EnvID {
			d.loggers.Warnf("Ignoring patch for %s: envID %q does not match path", msg.Path, env.EnvID)
			return nil, nil
		}
		return Patch{Path: msg.Path, Environment: env}, nil

	case EventDelete:
		var msg deleteMessageData
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return nil, &ldacerrors.ProtocolError{EventName: ev.Name, Cause: err}
		}
		if msg.Path == "" {
			return nil, &ldacerrors.ProtocolError{EventName: ev.Name, Cause: errEmptyPath}
		}
		if prefix, _ := path.Split(msg.Path); prefix != environmentPathPrefix {
			d.loggers.Debugf("Ignoring unknown entity: %s", msg.Path)
			return nil, nil
		}
		return Delete{Path: msg.Path, Version: msg.Version}, nil

	case EventError:
		var msg errorMessageData
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			return nil, &ldacerrors.ProtocolError{EventName: ev.Name, Cause: err}
		}
		return ServerError{Status: msg.Status, Message: msg.Message}, nil

	case EventReconnect:
		d.loggers.Info("Will restart stream connection due to a server-directed reconnect")
		return Reconnect{}, nil

	default:
		d.loggers.Debugf("Ignoring unrecognized stream event: %q", ev.Name)
		return nil, nil
	}
}

var errEmptyPath = emptyPathError{}

type emptyPathError struct{}

func (emptyPathError) Error() string { return "message is missing a path" }
