package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harborml/skiff/internal/config"
	"github.com/harborml/skiff/internal/orchestrator"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "skiff",
	Short: "A provider-agnostic AI capability CLI",
	Long: `Skiff routes AI requests to the right provider. It detects what a
request needs (chat, embeddings, image generation, speech), picks a
registered provider with that capability, applies per-provider rate
limits, and normalizes streaming output into a single event shape.

Examples:
  skiff chat "summarize this design in one paragraph"
  skiff chat --provider openai --model gpt-4o-mini "hello"
  skiff chat --interactive
  skiff providers --format table
  skiff health`,
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.skiff.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".skiff")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SKIFF")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("format", "text")
	viper.SetDefault("verbose", false)
	viper.SetDefault("providers.default", "")
	viper.SetDefault("providers.ollama.enabled", true)
	viper.SetDefault("providers.ollama.host", "")
	viper.SetDefault("providers.ollama.model", "llama3.2")
	viper.SetDefault("providers.ollama.embedding_model", "nomic-embed-text")
	viper.SetDefault("providers.openai.enabled", false)
	viper.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("providers.openai.model", "")
	viper.SetDefault("providers.openai.fallback_models", []string{"gpt-4o-mini", "gpt-4o"})
	viper.SetDefault("health.timeout", 5*time.Second)

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// newLogger builds the CLI logger; verbose raises the level to info.
func newLogger() *slog.Logger {
	level := slog.LevelError
	if viper.GetBool("verbose") {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig unmarshals the viper state into a typed config.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newOrchestrator builds the provider pipeline from the loaded config.
func newOrchestrator(logger *slog.Logger) (*orchestrator.Orchestrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	o, err := orchestrator.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w\n\nTroubleshooting:\n- Ensure Ollama is running: ollama serve\n- Check provider config in ~/.skiff.yaml\n- For OpenAI-compatible endpoints, verify API keys are set", err)
	}
	return o, nil
}
