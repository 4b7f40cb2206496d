package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarqd/ldactl/internal/hook"
	"github.com/tarqd/ldactl/internal/ldacerrors"
)

func buildAndResolve(t *testing.T, args []string, execArgs []string) (*Config, error) {
	t.Helper()
	cmd := &cobra.Command{}
	r := Bind(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return r.Resolve(execArgs)
}

func TestResolveAppliesDefaults(t *testing.T) {
	cfg, err := buildAndResolve(t, []string{"-k", "key123"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "key123", cfg.Credential)
	assert.Equal(t, defaultStreamURI, cfg.StreamURI.String())
	assert.Equal(t, hook.ModeEnv, cfg.ExecMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Once)
}

func TestResolveMissingCredentialIsConfigError(t *testing.T) {
	_, err := buildAndResolve(t, nil, nil)
	require.Error(t, err)
	var cfgErr *ldacerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolveInvalidExecModeIsConfigError(t *testing.T) {
	_, err := buildAndResolve(t, []string{"-k", "key123", "-m", "bogus"}, nil)
	require.Error(t, err)
	var cfgErr *ldacerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolveInvalidStreamURIIsConfigError(t *testing.T) {
	_, err := buildAndResolve(t, []string{"-k", "key123", "-u", "not a url"}, nil)
	require.Error(t, err)
	var cfgErr *ldacerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolveCollectsMultipleErrors(t *testing.T) {
	_, err := buildAndResolve(t, []string{"-m", "bogus", "-l", "verbose"}, nil)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "credential")
	assert.Contains(t, msg, "exec-mode")
	assert.Contains(t, msg, "log-level")
}

func TestResolveFlagOverridesEnv(t *testing.T) {
	t.Setenv(envCredential, "env-key")
	cfg, err := buildAndResolve(t, []string{"-k", "flag-key"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "flag-key", cfg.Credential)
}

func TestResolveFallsBackToEnv(t *testing.T) {
	t.Setenv(envCredential, "env-key")
	cfg, err := buildAndResolve(t, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Credential)
}

func TestResolvePassesThroughTrailingExecArgs(t *testing.T) {
	cfg, err := buildAndResolve(t, []string{"-k", "key123"}, []string{"--flag", "value"})
	require.NoError(t, err)
	assert.Equal(t, []string{"--flag", "value"}, cfg.ExecArgs)
}
