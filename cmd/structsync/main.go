package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/walteh/structsync/cmd/structsync/commands"
	"github.com/walteh/structsync/cmd/structsync/opts"
	"github.com/walteh/structsync/cmd/structsync/ui"
)

func main() {
	rootOpts := &opts.RootOpts{}

	rootCmd := &cobra.Command{
		Use:   "structsync",
		Short: "Capture and re-materialize parameterized directory structures",
		Long: `structsync captures the layout of an existing project as a reusable
structure template and materializes templates into target directories
with variable substitution, conflict-safe merging, and structural diffs.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if rootOpts.Debug {
				debugCtx := zerolog.Ctx(cmd.Context()).Level(zerolog.DebugLevel).WithContext(cmd.Context())
				cmd.SetContext(debugCtx)
			}
		},
	}
	addRootFlags(rootCmd, rootOpts)

	ctx := setupLogging(context.Background(), rootOpts)
	rootOpts.UserLogger = ui.NewUserLogger(ctx)

	rootCmd.AddCommand(
		commands.NewScanCmd(rootOpts),
		commands.NewSyncCmd(rootOpts),
		commands.NewListCmd(rootOpts),
		commands.NewCompareCmd(rootOpts),
		commands.NewDeleteCmd(rootOpts),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		rootOpts.UserLogger.Failure("Command failed", err)
		os.Exit(1)
	}
}

// addRootFlags adds shared flags to the root command.
func addRootFlags(cmd *cobra.Command, o *opts.RootOpts) {
	cmd.PersistentFlags().StringVarP(&o.ConfigPath, "config", "c", "sync_config.yaml", "config file path")
	cmd.PersistentFlags().StringVar(&o.TemplatesDir, "templates-dir", "", "override the templates directory")
	cmd.PersistentFlags().BoolVarP(&o.Debug, "debug", "d", false, "enable debug logging")
}

// setupLogging configures zerolog and stores the logger in the context.
func setupLogging(ctx context.Context, o *opts.RootOpts) context.Context {
	level := zerolog.InfoLevel
	if o.Debug || os.Getenv("STRUCTSYNC_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(level)
	return logger.WithContext(ctx)
}
