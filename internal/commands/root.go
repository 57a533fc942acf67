// Package commands provides CLI commands for chatstream.
package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/diogo/chatstream/internal/config"
)

var (
	// Global flags
	modelFlag    string
	backendFlag  string
	baseURLFlag  string
	debugLogFlag string
	apiKeyFlag   string

	// One-shot flags
	outputFlag string
	fileFlag   string
	rawFlag    bool

	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "chatstream [prompt]",
	Short: "Streaming chat client for OpenAI-compatible APIs",
	Long: `chatstream talks to an OpenAI-compatible chat completions endpoint and
shows replies as they stream in. The API key is held in memory only and is
never written to disk.

Examples:
  chatstream chat                       Start interactive chat
  chatstream "What is Go?"              Send a single query
  chatstream -f prompt.md               Read prompt from file
  cat prompt.md | chatstream            Read prompt from stdin
  chatstream "Hello" -o response.md     Save response to file
  chatstream config set default_model gpt-4o`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "chatstream %s (built %s)\n", Version, BuildTime)
			return nil
		}

		prompt, ok, err := readPrompt(args, fileFlag, os.Stdin)
		if err != nil {
			return err
		}
		if !ok {
			return cmd.Help()
		}

		return runQueryCommand(cmd.Context(), prompt)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model to use (e.g., gpt-4o-mini)")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Transport backend (http, sdk)")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "Base URL of the OpenAI-compatible API")
	rootCmd.PersistentFlags().StringVar(&debugLogFlag, "debug-log", "", "Write JSON debug logs to this file")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "",
		"API key for this run (defaults to $CHATSTREAM_API_KEY or $OPENAI_API_KEY)")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Save response to file")
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Read prompt from file")
	rootCmd.Flags().BoolVar(&rawFlag, "raw", false, "Print only the response text, without decoration")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
}

// readPrompt picks the prompt from, in order, the file flag, piped stdin and
// the positional argument. ok is false when there is no input at all.
func readPrompt(args []string, file string, stdin *os.File) (string, bool, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}

	if stdin != nil {
		if stat, err := stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return "", false, fmt.Errorf("failed to read stdin: %w", err)
			}
			if strings.TrimSpace(string(data)) != "" || len(args) == 0 {
				return string(data), true, nil
			}
		}
	}

	if len(args) > 0 {
		return args[0], true, nil
	}
	return "", false, nil
}

// loadConfig loads the config file and applies the global flag overrides
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return cfg, err
	}
	applyFlagOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlagOverrides(cfg *config.Config) {
	if modelFlag != "" {
		cfg.DefaultModel = modelFlag
	}
	if backendFlag != "" {
		cfg.Backend = strings.ToLower(backendFlag)
	}
	if baseURLFlag != "" {
		cfg.BaseURL = baseURLFlag
	}
	if debugLogFlag != "" {
		cfg.DebugLog = debugLogFlag
	}
}
