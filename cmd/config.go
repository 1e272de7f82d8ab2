package cmd

import (
	"fmt"

	"github.com/snapctx/snapctx/internal/config"
	"github.com/snapctx/snapctx/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	RunE:  runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE:  runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path, _ := config.GetConfigPath()
	styles := ui.DefaultStyles()
	if config.Exists() {
		fmt.Printf("config: %s\n\n", path)
	} else {
		fmt.Printf("config: %s %s\n\n", path, styles.Muted.Render("(not found, using defaults)"))
	}

	defName, _, _ := cfg.ResolveModel("")
	for _, name := range cfg.ModelNames() {
		mc := cfg.Models[name]
		marker := " "
		if name == defName {
			marker = styles.Highlighted.Render("*")
		}
		key := styles.Error.Render("no key")
		if mc.APIKey != "" {
			key = styles.Success.Render("key set")
		}
		fmt.Printf("%s %s  %s  %s  [%s]\n", marker, name, mc.Model, styles.Muted.Render(mc.BaseURL), key)
	}
	fmt.Printf("\ncollect: max_rounds=%d copy=%v\n", cfg.Collect.MaxRounds, cfg.Collect.Copy)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if config.Exists() {
		path, _ := config.GetConfigPath()
		return fmt.Errorf("config already exists at %s", path)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	path, _ := config.GetConfigPath()
	fmt.Println(ui.DefaultStyles().FormatResult(true, "wrote "+path))
	return nil
}
