package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kwv/fgsp/posegraph"
)

// Version is set at build time via -ldflags
var Version = "dev"

var opts AppOptions

var rootCmd = &cobra.Command{
	Use:           "fgsp",
	Short:         "Pose graph drift monitor for robot fleets",
	Long:          "fgsp compares each robot's estimated trajectory with the server-optimized one and feeds corrections back as relative and anchor constraints.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run the per-robot graph client",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := NewApp()
		app.ApplyOptions(opts)
		return app.RunClient(ctx)
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the server-side graph relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := NewApp()
		app.ApplyOptions(opts)
		return app.RunMonitor(ctx)
	},
}

var writeConfig string

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the configuration and print the effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := posegraph.LoadConfig(opts.ConfigFile)
		if err != nil {
			return err
		}
		if writeConfig != "" {
			if err := posegraph.SaveConfig(writeConfig, config); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote effective configuration to %s\n", writeConfig)
			return nil
		}
		out, err := yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("marshaling config YAML: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# %s is valid\n%s", opts.ConfigFile, out)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "console", "Log format: console or json")
	rootCmd.PersistentFlags().IntVar(&opts.HTTPPort, "http-port", 0, "HTTP server port (overrides http.port, 0 keeps the config value)")

	checkConfigCmd.Flags().StringVar(&writeConfig, "write", "", "Write the effective configuration to this file")

	rootCmd.AddCommand(clientCmd, monitorCmd, checkConfigCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
