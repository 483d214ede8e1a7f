// ABOUTME: Root Cobra command and global flags for the propsearch CLI.
// ABOUTME: Loads config, sets up logging, builds the session, and runs the interactive screen.
package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/2389-research/propsearch/internal/app"
	"github.com/2389-research/propsearch/internal/config"
	"github.com/2389-research/propsearch/internal/logging"
	"github.com/2389-research/propsearch/internal/tui"
)

var globalConfig *config.Config
var globalLogger zerolog.Logger
var globalLogCloser io.Closer
var globalSession *app.Session

// Flags
var (
	datasetFlag  string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "propsearch",
	Short: "Semantic property search with voice input and spoken results",
	Long: `
   PROPSEARCH

Search property listings by meaning rather than keywords.
Type or speak a query; the five closest listings are shown and read aloud.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "setup" {
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if datasetFlag != "" {
			cfg.Dataset = datasetFlag
		}
		if logLevelFlag != "" {
			cfg.Log.Level = logLevelFlag
		}
		globalConfig = cfg

		// The interactive screen owns the terminal, so it logs to a file.
		mode, logPath := logging.Console, ""
		if cmd == rootCmd {
			mode = logging.File
			if logPath, err = cfg.GetLogPath(); err != nil {
				return fmt.Errorf("failed to resolve log path: %w", err)
			}
		}
		logger, closer, err := logging.New(mode, cfg.Log.Level, logPath)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		globalLogger = logger.With().Str("command", cmd.Name()).Logger()
		globalLogCloser = closer

		session, err := app.NewSession(cfg, app.WithLogger(globalLogger))
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		globalSession = session
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if globalSession != nil {
			_ = globalSession.Close()
			globalSession = nil
		}
		if globalLogCloser != nil {
			_ = globalLogCloser.Close()
			globalLogCloser = nil
		}
		return nil
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&datasetFlag, "dataset", "", "Path to the listings CSV (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
}

func runInteractive(cmd *cobra.Command, args []string) error {
	globalLogger.Info().Str("dataset", globalConfig.Dataset).Msg("starting interactive search")

	p := tea.NewProgram(tui.NewSearchModel(globalSession))
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	if final, ok := result.(tui.SearchModel); ok && final.Err() != nil {
		return final.Err()
	}
	return nil
}
