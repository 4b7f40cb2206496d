// Package supervisor owns the stream connection lifecycle: connecting,
// retrying under transient failure with backoff, and running the
// per-change pipeline (decode -> apply to store -> materialize -> dispatch
// hook) in strict order with no interleaving across changes.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/tarqd/ldactl/internal/autoconfig"
	"github.com/tarqd/ldactl/internal/hook"
	"github.com/tarqd/ldactl/internal/ldacerrors"
	"github.com/tarqd/ldactl/internal/logging"
	"github.com/tarqd/ldactl/internal/materializer"
	"github.com/tarqd/ldactl/internal/sse"
	"github.com/tarqd/ldactl/internal/store"
)

const (
	initialRetryDelay = 1 * time.Second
	maxRetryDelay      = 30 * time.Second
	jitterRatio        = 0.2
	maxEventSize       = 1 << 20 // generous bound for a single put/patch/delete payload
	readBufferSize     = 4096
)

// Supervisor drives one logical stream connection across its whole
// lifetime: reconnecting under transient failure, and running every
// decoded Change through the store, materializer, and hook dispatcher in
// the order spec.md 4.F and 5 require.
type Supervisor struct {
	StreamURI  string
	Credential string
	Client     *http.Client

	Store        *store.Store
	Materializer *materializer.Materializer // nil disables materialization
	Dispatcher   *hook.Dispatcher           // nil disables hook dispatch

	Loggers ldlog.Loggers
	Once    bool

	frames  *sse.Decoder
	changes *autoconfig.Decoder
}

type connectOutcome int

const (
	outcomeRetry connectOutcome = iota
	outcomeReconnectNow
	outcomeDone
)

// Run connects to the stream and processes it until ctx is cancelled, a
// fatal error occurs (auth/not-found), or - in one-shot mode - the first
// Put has been fully processed. A nil return means clean shutdown or
// one-shot completion; any other return is a fatal error the caller should
// translate to a process exit code via ldacerrors.ExitCode.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.frames == nil {
		s.frames = sse.NewDecoder(maxEventSize)
	}
	if s.changes == nil {
		s.changes = autoconfig.NewDecoder(s.Loggers)
	}
	b := newBackoff(initialRetryDelay, maxRetryDelay)

	for {
		if ctx.Err() != nil {
			return nil
		}

		outcome, err := s.connectOnce(ctx, b)
		if err != nil {
			return err
		}
		switch outcome {
		case outcomeDone:
			return nil
		case outcomeReconnectNow:
			continue
		case outcomeRetry:
			delay := b.next()
			s.Loggers.Warnf("Stream disconnected, reconnecting in %s", delay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
		}
	}
}

func (s *Supervisor) httpClient() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = 0 // the whole response body is the stream; there is no overall deadline
	return client
}

func (s *Supervisor) connectOnce(ctx context.Context, b *backoff) (connectOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.StreamURI, nil)
	if err != nil {
		return outcomeRetry, &ldacerrors.ConfigError{Cause: fmt.Errorf("building stream request: %w", err)}
	}
	req.Header.Set("Authorization", s.Credential)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	s.Loggers.Infof("Connecting to stream at %s", s.StreamURI)
	resp, err := s.httpClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeRetry, nil
		}
		s.Loggers.Warnf("Stream connection failed: %s", err)
		return outcomeRetry, nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return outcomeRetry, &ldacerrors.AuthError{StatusCode: resp.StatusCode}
	case http.StatusNotFound:
		return outcomeRetry, &ldacerrors.NotFoundError{}
	}
	if resp.StatusCode/100 != 2 {
		s.Loggers.Warnf("Stream responded with unexpected status %d", resp.StatusCode)
		return outcomeRetry, nil
	}

	s.Loggers.Info("Stream connected")
	s.frames.Reset()
	return s.consume(ctx, resp.Body, b)
}

// consume reads from body until the connection ends, dispatching each
// decoded frame through the pipeline as it arrives.
func (s *Supervisor) consume(ctx context.Context, body io.Reader, b *backoff) (connectOutcome, error) {
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, werr := s.frames.Write(buf[:n]); werr != nil {
				s.Loggers.Warnf("Malformed stream data, reconnecting: %s", werr)
				return outcomeRetry, nil
			}
			for {
				frame, ok := s.frames.Next()
				if !ok {
					break
				}
				outcome, stop, err := s.handleFrame(ctx, frame, b)
				if err != nil {
					return outcomeRetry, err
				}
				if stop {
					return outcome, nil
				}
			}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return outcomeRetry, nil
			}
			if errors.Is(readErr, io.EOF) {
				s.Loggers.Warn("Stream closed by server")
			} else {
				s.Loggers.Warnf("Stream read error: %s", readErr)
			}
			return outcomeRetry, nil
		}
	}
}

// handleFrame processes one sse.Frame. stop is true when the caller should
// stop reading this connection and return outcome immediately (a fatal
// error, a protocol error, a non-fatal server-reported error, a deliberate
// reconnect, or one-shot completion); otherwise the caller keeps reading
// from the same connection.
func (s *Supervisor) handleFrame(ctx context.Context, frame sse.Frame, b *backoff) (outcome connectOutcome, stop bool, err error) {
	switch f := frame.(type) {
	case sse.Retry:
		b.override(time.Duration(f.MillisDelay) * time.Millisecond)
		return 0, false, nil
	case sse.Event:
		return s.handleEvent(ctx, f, b)
	default: // sse.Comment
		return 0, false, nil
	}
}

func (s *Supervisor) handleEvent(ctx context.Context, ev sse.Event, b *backoff) (outcome connectOutcome, stop bool, err error) {
	if s.Loggers.IsDebugEnabled() {
		s.Loggers.Debugf("Received %q event: %s", ev.Name, logging.ObfuscatePayload(string(ev.Data)))
	}

	change, decodeErr := s.changes.Decode(ev)
	if decodeErr != nil {
		s.Loggers.Warnf("Protocol error, reconnecting: %s", decodeErr)
		return outcomeRetry, true, nil
	}
	if change == nil {
		return 0, false, nil
	}

	b.reset() // successful frame reception resets backoff (spec.md 4.F)

	switch c := change.(type) {
	case autoconfig.Reconnect:
		s.Loggers.Info("Restarting stream connection due to a server-directed reconnect")
		return outcomeReconnectNow, true, nil

	case autoconfig.ServerError:
		s.Loggers.Warnf("Server reported an error: %s", c.Error())
		switch c.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return 0, true, &ldacerrors.AuthError{StatusCode: c.Status}
		case http.StatusNotFound:
			return 0, true, &ldacerrors.NotFoundError{}
		}
		return outcomeRetry, true, nil

	case autoconfig.Put:
		s.applyPut(ctx, c)
		if s.Once {
			return outcomeDone, true, nil
		}
		return 0, false, nil

	case autoconfig.Patch:
		s.applyPatch(ctx, c)
		return 0, false, nil

	case autoconfig.Delete:
		s.applyDelete(ctx, c)
		return 0, false, nil
	}
	return 0, false, nil
}

// applyPut implements spec.md 4.F step 3: materialize once for the whole
// snapshot, then dispatch one "initialized" hook per environment in
// path-sorted order. One-shot mode fires no hooks for the initial snapshot.
func (s *Supervisor) applyPut(ctx context.Context, put autoconfig.Put) {
	paths := s.Store.Replace(put.Environments)
	s.Loggers.Infof("Replaced store with %d environment(s)", len(paths))

	s.materialize()

	if s.Once {
		return
	}
	for _, path := range paths {
		if env, ok := s.Store.Get(path); ok {
			s.dispatch(ctx, hook.KindInitialized, env)
		}
	}
}

func (s *Supervisor) applyPatch(ctx context.Context, patch autoconfig.Patch) {
	kind := s.Store.ApplyPatch(patch.Path, patch.Environment)
	if kind == store.ChangeNoop {
		return
	}
	s.materialize()
	s.dispatch(ctx, changeKindToHookKind(kind), patch.Environment)
}

func (s *Supervisor) applyDelete(ctx context.Context, del autoconfig.Delete) {
	env, existed := s.Store.Get(del.Path)
	kind := s.Store.ApplyDelete(del.Path, del.Version)
	if kind == store.ChangeNoop || !existed {
		return
	}
	s.materialize()
	s.dispatch(ctx, hook.KindDelete, env)
}

func (s *Supervisor) materialize() {
	if s.Materializer == nil {
		return
	}
	if err := s.Materializer.Write(s.Store.Snapshot()); err != nil {
		s.Loggers.Warnf("Failed to write output file: %s", err)
	}
}

func (s *Supervisor) dispatch(ctx context.Context, kind hook.Kind, env autoconfig.Environment) {
	if s.Dispatcher == nil {
		return
	}
	if err := s.Dispatcher.Dispatch(ctx, kind, env); err != nil {
		s.Loggers.Warnf("Hook invocation failed: %s", err)
	}
}

func changeKindToHookKind(k store.ChangeKind) hook.Kind {
	if k == store.ChangeInsert {
		return hook.KindInsert
	}
	return hook.KindUpdate
}
