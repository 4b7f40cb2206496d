// Command ldactl subscribes to a LaunchDarkly-style auto-configuration
// stream, maintains an in-memory mirror of the environment population, and
// optionally materializes it to a file and/or runs a hook command for
// every applied change.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tarqd/ldactl/internal/config"
	"github.com/tarqd/ldactl/internal/hook"
	"github.com/tarqd/ldactl/internal/ldacerrors"
	"github.com/tarqd/ldactl/internal/logging"
	"github.com/tarqd/ldactl/internal/materializer"
	"github.com/tarqd/ldactl/internal/store"
	"github.com/tarqd/ldactl/internal/supervisor"
)

func main() {
	os.Exit(run())
}

var rootCmd = &cobra.Command{
	Use:   "ldactl",
	Short: "Stream LaunchDarkly auto-configuration data to a file and/or a hook command",
}

func run() int {
	raw := config.Bind(rootCmd)

	var runErr error
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		execArgs := []string{}
		if dash := cmd.ArgsLenAtDash(); dash >= 0 {
			execArgs = args[dash:]
		}
		runErr = execute(raw, execArgs)
		return nil // the error is reported and mapped to an exit code below, not via cobra's own handling
	}
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr.Error())
		return ldacerrors.ExitCode(runErr)
	}
	return 0
}

func execute(raw *config.RawFlags, trailingArgs []string) error {
	cfg, err := raw.Resolve(trailingArgs)
	if err != nil {
		return err
	}

	loggers := logging.New(cfg.LogLevel)

	st := store.New()

	var m *materializer.Materializer
	if cfg.OutputFile != "" {
		m = materializer.New(cfg.OutputFile)
	}

	var d *hook.Dispatcher
	if cfg.Exec != "" {
		d = &hook.Dispatcher{
			Command: cfg.Exec,
			Mode:    cfg.ExecMode,
			Args:    cfg.ExecArgs,
			Loggers: loggers,
		}
	}

	sup := &supervisor.Supervisor{
		StreamURI:    cfg.StreamURI.String(),
		Credential:   cfg.Credential,
		Store:        st,
		Materializer: m,
		Dispatcher:   d,
		Loggers:      loggers,
		Once:         cfg.Once,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sup.Run(ctx)
}
