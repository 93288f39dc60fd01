package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel   string // Log verbosity level
	configPath string // Path to defaults.yaml
	appConfig  Config // Effective config after file, env and flags
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "Supply-chain simulation, forecasting and planning assistant",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		// --log wins over log.level when given explicitly
		if cmd.Flags().Changed("log") {
			cfg.Log.Level = logLevel
		}
		level, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", cfg.Log.Level)
		}
		logrus.SetLevel(level)
		if cfg.Log.JSON {
			logrus.SetFormatter(&logrus.JSONFormatter{})
		}
		appConfig = cfg
		logrus.Debugf("effective config:\n%s", cfg)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a defaults.yaml config file")

	rootCmd.AddCommand(simulateCmd, forecastCmd, routeCmd, askCmd, serveCmd)
}
