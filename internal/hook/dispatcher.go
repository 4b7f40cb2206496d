// Package hook invokes the user-supplied hook executable for each applied
// change, either by passing environment variables or by writing a JSON
// document to the child's standard input.
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/tarqd/ldactl/internal/autoconfig"
	"github.com/tarqd/ldactl/internal/ldacerrors"
)

// ExecMode selects how change data is delivered to the hook process.
type ExecMode string

const (
	ModeEnv        ExecMode = "env"
	ModeChangeJSON ExecMode = "change-json"
)

// Kind identifies what sort of change triggered this hook invocation.
type Kind string

const (
	KindInsert      Kind = "insert"
	KindUpdate      Kind = "update"
	KindDelete      Kind = "delete"
	KindInitialized Kind = "initialized"
)

// Dispatcher spawns the configured hook command once per change and waits
// for it to exit before returning, enforcing the "exactly one hook process
// in flight at a time" invariant (I4) simply by being called synchronously.
type Dispatcher struct {
	Command string
	Mode    ExecMode
	Args    []string
	Loggers ldlog.Loggers

	// GraceDeadline bounds how long an in-flight hook may run past a
	// cancellation request before a warning is logged. The hook is never
	// killed; cancellation only affects how long we wait quietly before
	// warning.
	GraceDeadline time.Duration
}

type changeJSONPayload struct {
	Kind           string `json:"kind"`
	ProjectKey     string `json:"projectKey"`
	EnvironmentKey string `json:"environmentKey"`
	EnvironmentID  string `json:"environmentId"`
	MobileKey      string `json:"mobileKey"`
	SDKKey         string `json:"sdkKey"`
}

// Dispatch runs the hook once for the given change. ctx is used only to
// detect a shutdown request for the grace-deadline warning; the child is
// never killed as a result of ctx being done.
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, env autoconfig.Environment) error {
	cmd := exec.Command(d.Command, d.Args...) //nolint:gosec // hook command is operator-supplied configuration
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	switch d.Mode {
	case ModeEnv:
		cmd.Env = append(os.Environ(),
			"LDAC_EVENT_KIND="+string(kind),
			"LDAC_PROJECT_KEY="+env.ProjectKey,
			"LDAC_ENV_KEY="+env.EnvKey,
			"LDAC_ENV_ID="+env.EnvID,
			"LDAC_MOBILE_KEY="+env.MobileKey,
			"LDAC_SDK_KEY="+env.SDKKey,
		)
	case ModeChangeJSON:
		payload := changeJSONPayload{
			Kind:           string(kind),
			ProjectKey:     env.ProjectKey,
			EnvironmentKey: env.EnvKey,
			EnvironmentID:  env.EnvID,
			MobileKey:      env.MobileKey,
			SDKKey:         env.SDKKey,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return &ldacerrors.HookError{Kind: string(kind), Cause: fmt.Errorf("encoding change payload: %w", err)}
		}
		cmd.Stdin = bytes.NewReader(body)
	default:
		return &ldacerrors.HookError{Kind: string(kind), Cause: fmt.Errorf("unknown exec mode %q", d.Mode)}
	}

	if err := cmd.Start(); err != nil {
		return &ldacerrors.HookError{Kind: string(kind), Cause: err}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	grace := d.GraceDeadline
	if grace <= 0 {
		grace = 30 * time.Second
	}

	select {
	case err := <-done:
		return d.result(kind, err)
	case <-ctx.Done():
		select {
		case err := <-done:
			return d.result(kind, err)
		case <-time.After(grace):
			d.Loggers.Warnf("Hook for %q change has been running for more than %s past shutdown request", kind, grace)
			return d.result(kind, <-done)
		}
	}
}

func (d *Dispatcher) result(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return &ldacerrors.HookError{Kind: string(kind), ExitCode: exitErr.ExitCode(), Cause: err}
	}
	return &ldacerrors.HookError{Kind: string(kind), Cause: err}
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
