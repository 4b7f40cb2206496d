// Package config assembles ldac's settings from CLI flags with
// environment-variable fallback, mirroring the reference relay's
// convention that every setting has a flag and a same-meaning environment
// variable, and the flag wins if both are set.
package config

import (
	"fmt"
	"os"

	ct "github.com/launchdarkly/go-configtypes"
	"github.com/spf13/cobra"
	"github.com/tarqd/ldactl/internal/hook"
	"github.com/tarqd/ldactl/internal/ldacerrors"
)

const (
	defaultStreamURI = "https://stream.launchdarkly.com/"
	defaultExecMode  = string(hook.ModeEnv)
	defaultLogLevel  = "info"

	envCredential = "LD_RELAY_AUTO_CONFIG_KEY"
	envStreamURI  = "LD_STREAM_URI"
	envOutputFile = "LDAC_OUTPUT_FILE"
	envExecMode   = "LDAC_EXEC_MODE"
	envExec       = "LDAC_EXEC"
	envLogLevel   = "LDAC_LOG_LEVEL"
)

// Config holds every resolved, validated setting ldac runs with.
type Config struct {
	Credential string
	StreamURI  ct.OptURLAbsolute
	Once       bool
	OutputFile string
	ExecMode   hook.ExecMode
	Exec       string
	ExecArgs   []string
	LogLevel   string
}

// RawFlags holds the string form of every flag before environment-variable
// fallback and validation are applied. Cobra binds directly into these
// fields; Resolve turns them into a Config.
type RawFlags struct {
	credential string
	streamURI  string
	once       bool
	outputFile string
	execMode   string
	exec       string
	logLevel   string
}

// Bind registers every ldac flag on cmd, returning the raw values that
// Resolve will later turn into a Config once flags have been parsed.
func Bind(cmd *cobra.Command) *RawFlags {
	r := &RawFlags{}
	flags := cmd.Flags()
	flags.StringVarP(&r.credential, "credential", "k", "",
		fmt.Sprintf("auto-configuration credential (env %s)", envCredential))
	flags.StringVarP(&r.streamURI, "stream-uri", "u", "",
		fmt.Sprintf("auto-configuration stream base URI (env %s, default %s)", envStreamURI, defaultStreamURI))
	flags.BoolVarP(&r.once, "once", "o", false,
		"exit after the first snapshot has been received and materialized")
	flags.StringVarP(&r.outputFile, "output-file", "f", "",
		fmt.Sprintf("path to write the environment snapshot to (env %s)", envOutputFile))
	flags.StringVarP(&r.execMode, "exec-mode", "m", "",
		fmt.Sprintf("how change data is passed to --exec: %q or %q (env %s, default %s)", hook.ModeEnv, hook.ModeChangeJSON, envExecMode, defaultExecMode))
	flags.StringVarP(&r.exec, "exec", "e", "",
		fmt.Sprintf("hook command to run once per applied change (env %s)", envExec))
	flags.StringVarP(&r.logLevel, "log-level", "l", "",
		fmt.Sprintf("minimum log level: debug, info, warn, error (env %s, default %s)", envLogLevel, defaultLogLevel))
	return r
}

// Resolve applies environment-variable fallback to every unset flag,
// validates the result, and returns a Config. execArgs are the trailing
// `-- <args...>` cobra passed through unchanged; they are appended to
// every hook invocation.
func (r *RawFlags) Resolve(execArgs []string) (*Config, error) {
	credential := firstNonEmpty(r.credential, os.Getenv(envCredential))
	streamURIStr := firstNonEmpty(r.streamURI, os.Getenv(envStreamURI), defaultStreamURI)
	outputFile := firstNonEmpty(r.outputFile, os.Getenv(envOutputFile))
	execMode := firstNonEmpty(r.execMode, os.Getenv(envExecMode), defaultExecMode)
	exec := firstNonEmpty(r.exec, os.Getenv(envExec))
	logLevel := firstNonEmpty(r.logLevel, os.Getenv(envLogLevel), defaultLogLevel)

	var result ct.ValidationResult

	if credential == "" {
		result.AddError(nil, errMissingCredential)
	}

	streamURI, err := ct.NewOptURLAbsoluteFromString(streamURIStr)
	if err != nil {
		result.AddError(nil, fmt.Errorf("invalid stream URI %q: %w", streamURIStr, err))
	}

	if execMode != string(hook.ModeEnv) && execMode != string(hook.ModeChangeJSON) {
		result.AddError(nil, fmt.Errorf("invalid exec-mode %q: must be %q or %q", execMode, hook.ModeEnv, hook.ModeChangeJSON))
	}

	if !validLogLevels[logLevel] {
		result.AddError(nil, fmt.Errorf("invalid log-level %q: must be one of debug, info, warn, error", logLevel))
	}

	if err := result.GetError(); err != nil {
		return nil, &ldacerrors.ConfigError{Cause: err}
	}

	return &Config{
		Credential: credential,
		StreamURI:  streamURI,
		Once:       r.once,
		OutputFile: outputFile,
		ExecMode:   hook.ExecMode(execMode),
		Exec:       exec,
		ExecArgs:   execArgs,
		LogLevel:   logLevel,
	}, nil
}

var errMissingCredential = fmt.Errorf("a credential is required (-k/--credential or %s)", envCredential)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
