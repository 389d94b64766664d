// Package cli defines the root Cobra command and global flag/context setup.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"dsplug.szuro.net/internal/cli/commands"
	"dsplug.szuro.net/internal/config"
	"dsplug.szuro.net/internal/logger"
	"dsplug.szuro.net/internal/metrics"
	"dsplug.szuro.net/internal/pprint"
)

var globalFlags struct {
	configFile string
	debug      bool
	jsonOutput bool
}

var rootCmd = &cobra.Command{
	Use:           "dsplughost",
	Short:         "Load, inspect and run DSPlug plugin libraries",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "completion" {
			return nil
		}
		return initRuntime(cmd)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "completion" {
			return nil
		}
		return commands.FromContext(cmd.Context()).Cache.CloseAll()
	},
}

// Execute runs the CLI. Called by main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pprint.Error("%s", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalFlags.configFile, "config", "c", config.DefaultPath, "Path of config file")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.debug, "debug", false, "Enable debug-level logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.jsonOutput, "json", false, "Output in machine-readable JSON")

	rootCmd.AddCommand(
		commands.NewScanCmd(),
		commands.NewInspectCmd(),
		commands.NewRunCmd(),
		commands.NewVersionCmd(),
	)
}

// initRuntime loads the configuration and builds the library cache before
// each command runs.
func initRuntime(cmd *cobra.Command) error {
	conf, err := config.ParseHostConfig(globalFlags.configFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level := conf.GetLogLevel()
	if globalFlags.debug {
		level = slog.LevelDebug
	}
	logger.SetLogLevel(level)
	metrics.BuildInfo(config.Version, config.Commit, config.BuildDate)

	cache, static := commands.NewCache(conf.Loaders)
	logger.Debug("Library cache ready", slog.Any("loaders", cache.Loaders()))

	cmd.SetContext(commands.NewContext(cmd.Context(), &commands.Runtime{
		Config: conf,
		Cache:  cache,
		Static: static,
		Flags: commands.GlobalFlags{
			Debug:      globalFlags.debug,
			JSONOutput: globalFlags.jsonOutput,
		},
	}))
	return nil
}
