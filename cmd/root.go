package cmd

import (
	"os"

	"github.com/snapctx/snapctx/internal/config"
	"github.com/snapctx/snapctx/internal/ui"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "snapctx",
	Short: "Collect project context for LLM prompts",
	Long: `snapctx walks a project with an LLM and collects the context
relevant to a question into a single snapshot you can paste anywhere.

Examples:
  snapctx collect "how does the auth middleware work"
  snapctx collect --copy                # general project overview, to clipboard
  snapctx collect -m local "where are errors logged"

  snapctx models                        # list models on the active endpoint
  snapctx config init                   # write a starter config`,
	Version:           Version,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

var debug bool
var showStats bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Emit raw tool call and result logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "Show run statistics (rounds, snippets, tokens)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the config and applies the theme.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	ui.InitTheme(ui.ThemeConfig{
		Primary: cfg.Theme.Primary,
		Success: cfg.Theme.Success,
		Error:   cfg.Theme.Error,
		Muted:   cfg.Theme.Muted,
		Text:    cfg.Theme.Text,
	})
	return cfg, nil
}
