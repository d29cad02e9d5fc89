// Package commands implements the CLI commands for delver.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "delver",
	Short: "Autonomous deep-research agent",
	Long: `Delver answers open questions by searching the web, reading
sources, and iterating with an LLM until the answer is definitive.

Examples:
  # Research a question with auto-detected provider
  delver research "What caused the 2024 CrowdStrike outage?"

  # Use a local SearxNG instance alongside DuckDuckGo
  delver research "quicksort vs mergesort" --searx-url http://localhost:8888

  # Use local Ollama and print a JSON report
  delver research "history of the fediverse" -p ollama -m llama3.2 --format json`,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.delver.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".delver")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("DELVER")
	viper.AutomaticEnv()

	// Also check common API key env vars
	_ = viper.BindEnv("api_key", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY")

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
