// ABOUTME: Cobra command for interactive embedding backend setup.
// ABOUTME: Launches a bubbletea TUI wizard to collect and validate backend settings.
package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/propsearch/internal/config"
	"github.com/2389-research/propsearch/internal/tui"
)

var providerFlag string

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the embedding backend",
	Long:  "Interactive wizard to configure and test the embedding server used for search.",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().StringVar(&providerFlag, "provider", "", "Embedding provider: openai, ollama, or hashing")
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	provider := strings.ToLower(cfg.Embedding.Provider)
	if providerFlag != "" {
		provider = strings.ToLower(providerFlag)
	}
	if provider == "" {
		provider = config.DefaultProvider
	}
	switch provider {
	case config.ProviderOpenAI, config.ProviderOllama, config.ProviderHashing:
	default:
		return fmt.Errorf("unknown embedding provider %q", provider)
	}

	model := tui.NewSetupModel(
		provider,
		cfg.Embedding.BaseURL,
		cfg.Embedding.Model,
		cfg.Embedding.APIKey,
	)

	p := tea.NewProgram(model)
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tui.SetupModel)
	if !final.ShouldSave() {
		fmt.Println("Setup cancelled.")
		return nil
	}

	baseURL, modelName, apiKey := final.Result()
	cfg.Embedding.Provider = provider
	cfg.Embedding.BaseURL = baseURL
	cfg.Embedding.Model = modelName
	cfg.Embedding.APIKey = apiKey

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	configPath, err := config.GetConfigPath()
	if err != nil {
		fmt.Println("Config saved successfully.")
	} else {
		fmt.Printf("Config saved to %s\n", configPath)
	}
	return nil
}
