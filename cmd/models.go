package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/snapctx/snapctx/internal/llm"
	"github.com/spf13/cobra"
)

var modelsProfile string
var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models from an endpoint",
	Long: `List available models from a configured endpoint.

This queries the endpoint's models API to discover what models are
available. Useful for finding model names to configure.

Examples:
  snapctx models                # query the default profile's endpoint
  snapctx models -m local       # query the "local" profile
  snapctx models --json         # output as JSON`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().StringVarP(&modelsProfile, "model", "m", "", "Model profile whose endpoint to query")
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
}

// ModelLister is implemented by providers that can enumerate models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name, mc, err := cfg.ResolveModel(modelsProfile)
	if err != nil {
		return err
	}
	provider, err := llm.NewProvider(name, mc.BaseURL, mc.APIKey, mc.Model)
	if err != nil {
		return err
	}
	lister, ok := provider.(ModelLister)
	if !ok {
		return fmt.Errorf("endpoint %s does not support model listing", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := lister.ListModels(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "connection refused") {
			return fmt.Errorf("cannot connect to the %s endpoint.\n"+
				"Make sure the server is running and base_url is correct", name)
		}
		return fmt.Errorf("failed to list models: %w", err)
	}

	if len(models) == 0 {
		fmt.Println("No models found.")
		return nil
	}

	if modelsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	fmt.Printf("Available models from %s:\n\n", name)
	for _, m := range models {
		fmt.Printf("  %s", m.ID)
		if m.Created > 0 {
			fmt.Printf("  (%s)", time.Unix(m.Created, 0).Format("2006-01-02"))
		}
		fmt.Println()
	}

	fmt.Printf("\nTo use a model, add to your config:\n")
	fmt.Printf("  models:\n    %s:\n      model: <model-name>\n", name)

	return nil
}
