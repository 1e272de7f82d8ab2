package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level snapctx configuration, loaded from
// config.yaml in the XDG config directory or the current directory.
type Config struct {
	DefaultModel string                 `mapstructure:"default_model"`
	Models       map[string]ModelConfig `mapstructure:"models"`
	Collect      CollectConfig          `mapstructure:"collect"`
	Theme        ThemeConfig            `mapstructure:"theme"`
}

// ModelConfig describes one named endpoint profile. Any server speaking
// the OpenAI chat-completions protocol works.
type ModelConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// CollectConfig tunes the collect command.
type CollectConfig struct {
	Model        string `mapstructure:"model"`        // Override profile for collect
	MaxRounds    int    `mapstructure:"max_rounds"`   // Cap on tool rounds per run
	Copy         bool   `mapstructure:"copy"`         // Copy collected context to clipboard
	Instructions string `mapstructure:"instructions"` // Extra system prompt context
}

// ThemeConfig allows customization of UI colors.
// Colors can be ANSI color numbers (0-255) or hex codes (#RRGGBB)
type ThemeConfig struct {
	Primary string `mapstructure:"primary"` // main accent (tool activity, highlights)
	Success string `mapstructure:"success"` // success states
	Error   string `mapstructure:"error"`   // error states
	Muted   string `mapstructure:"muted"`   // dimmed text
	Text    string `mapstructure:"text"`    // primary text
}

func Load() (*Config, error) {
	configPath, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath(".")

	viper.SetDefault("default_model", "openai")
	viper.SetDefault("collect.max_rounds", 20)
	viper.SetDefault("models.openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("models.openai.model", "gpt-4.1")

	// Config file is optional; defaults plus env vars are enough to run.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for name, mc := range cfg.Models {
		resolveModelCredentials(name, &mc)
		cfg.Models[name] = mc
	}

	return &cfg, nil
}

// ApplyOverrides applies command-line overrides to the config.
// A non-empty model selects the profile used by collect.
func (c *Config) ApplyOverrides(model string, maxRounds int) {
	if model != "" {
		c.Collect.Model = model
	}
	if maxRounds > 0 {
		c.Collect.MaxRounds = maxRounds
	}
}

// ResolveModel picks the profile for a run: the explicit name if given,
// otherwise the collect override, otherwise default_model.
func (c *Config) ResolveModel(name string) (string, ModelConfig, error) {
	if name == "" {
		name = c.Collect.Model
	}
	if name == "" {
		name = c.DefaultModel
	}
	mc, ok := c.Models[name]
	if !ok {
		return "", ModelConfig{}, fmt.Errorf("unknown model profile %q (known: %s)", name, strings.Join(c.ModelNames(), ", "))
	}
	return name, mc, nil
}

// ModelNames returns the configured profile names, sorted.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for name := range c.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveModelCredentials expands env references and falls back to
// OPENAI_API_KEY for the official endpoint.
func resolveModelCredentials(name string, cfg *ModelConfig) {
	cfg.APIKey = expandEnv(cfg.APIKey)
	cfg.BaseURL = expandEnv(cfg.BaseURL)
	if cfg.APIKey == "" {
		if name == "openai" || strings.Contains(cfg.BaseURL, "api.openai.com") {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for snapctx.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "snapctx"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "snapctx"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes a starter config to disk
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	name, mc, err := cfg.ResolveModel("")
	if err != nil {
		name, mc = "openai", ModelConfig{BaseURL: "https://api.openai.com/v1", Model: "gpt-4.1"}
	}

	content := fmt.Sprintf(`default_model: %s

models:
  %s:
    base_url: %s
    model: %s
    # api_key: ${OPENAI_API_KEY}
  # local:
  #   base_url: http://localhost:11434/v1
  #   model: qwen3:14b

collect:
  max_rounds: %d
  # copy: true
  # Extra context for the collection prompt
  # instructions: |
  #   Focus on the server packages, ignore generated code.
`, name, name, mc.BaseURL, mc.Model, cfg.Collect.MaxRounds)

	return os.WriteFile(path, []byte(content), 0600)
}
