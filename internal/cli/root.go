package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skillforge/skillbridge/internal/config"
	bridgeerrors "github.com/skillforge/skillbridge/internal/errors"
	"github.com/skillforge/skillbridge/internal/logging"
	sentryutil "github.com/skillforge/skillbridge/internal/sentry"
	"github.com/skillforge/skillbridge/internal/version"
)

// rootOptions carries global flags and injectable dependencies.
type rootOptions struct {
	fs         afero.Fs
	configFile string
	debug      bool
	logFormat  string
}

// NewRootCommand builds the command tree. Running the root command with no
// subcommand starts the bridge.
func NewRootCommand(fs afero.Fs) *cobra.Command {
	opts := &rootOptions{fs: fs}

	rootCmd := &cobra.Command{
		Use:   "skillbridge",
		Short: "🌉 SkillForge MCP bridge - expose on-chain skills as agent tools",
		Long: `skillbridge reads the SkillForge skill registry, resolves each skill's
metadata and exposes every active skill as an MCP tool over SSE.

Agents connect to http://localhost:<port>/sse and call tools by name; each
call is forwarded to the SkillForge backend for execution.

Configuration comes from the environment (a .env file is loaded if present)
and, optionally, a YAML file passed with --config.`,
		Example: `  # Start the bridge (same as "skillbridge serve")
  skillbridge

  # List the skills agents would see right now
  skillbridge skills list

  # Inspect one skill
  skillbridge skills show 7`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to a YAML config file (default $SKILLBRIDGE_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format (console|json)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newSkillsCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, args []string, stderr io.Writer) int {
	root := NewRootCommand(afero.NewOsFs())
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, color.New(color.FgRed).Sprint(bridgeerrors.Format(err)))
		return bridgeerrors.ExitCodeFromError(err)
	}
	return bridgeerrors.ExitCodeSuccess
}

// load reads configuration and builds the logger. Flags override the
// environment and the file.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.fs, o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.debug {
		cfg.Debug = true
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}

	logger, err := logging.New(cfg.Debug, cfg.LogFormat)
	if err != nil {
		return nil, nil, bridgeerrors.ConfigError(err)
	}
	return cfg, logger, nil
}

// initSentry enables error reporting when SENTRY_DSN is set. Failures are
// logged and otherwise ignored.
func initSentry(cfg *config.Config, logger *zap.Logger) func() {
	err := sentryutil.Initialize(sentryutil.Config{
		DSN:         os.Getenv("SENTRY_DSN"),
		Environment: os.Getenv("SENTRY_ENVIRONMENT"),
		Release:     "skillbridge@" + version.Version,
		SampleRate:  1.0,
		Debug:       os.Getenv("SENTRY_DEBUG") == "true",
		Extras: map[string]interface{}{
			"registry_address": cfg.RegistryAddress,
			"backend_url":      cfg.BackendURL,
			"rpc_url":          cfg.RPCURL,
		},
	})
	if err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	return func() { sentryutil.Flush(2 * time.Second) }
}
