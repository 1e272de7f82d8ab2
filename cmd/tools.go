package cmd

import (
	"fmt"
	"os"

	"github.com/snapctx/snapctx/internal/llm"
	"github.com/snapctx/snapctx/internal/tools"
	"github.com/snapctx/snapctx/internal/ui"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools exposed to the model",
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	root, err := os.Getwd()
	if err != nil {
		return err
	}

	sink := tools.NewContextSink()
	registry := llm.NewToolRegistry()
	registry.Register(tools.NewTreeTool(root))
	registry.Register(tools.NewReadFileTool(root))
	registry.Register(tools.NewSaveContextTool(sink))

	styles := ui.NewStyles(os.Stdout)
	for _, spec := range registry.AllSpecs() {
		fmt.Printf("%s\n  %s\n", styles.Highlighted.Render(spec.Name), styles.Muted.Render(spec.Description))
	}
	return nil
}
