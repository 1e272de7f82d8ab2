package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/snapctx/snapctx/internal/clipboard"
	"github.com/snapctx/snapctx/internal/llm"
	"github.com/snapctx/snapctx/internal/prompt"
	"github.com/snapctx/snapctx/internal/signal"
	"github.com/snapctx/snapctx/internal/tools"
	"github.com/snapctx/snapctx/internal/ui"
	"github.com/spf13/cobra"
)

var (
	collectModel     string
	collectMaxRounds int
	collectCopy      bool
	collectOutput    string
	collectRaw       bool
)

var collectCmd = &cobra.Command{
	Use:   "collect [question]",
	Short: "Collect project context relevant to a question",
	Long: `Collect walks the current project with an LLM: the model lists the
tree, reads the files it judges relevant and saves snippets until it has
enough context to answer the question. The collected snapshot goes to
stdout (or a file with -o).

With no question, a general project overview is collected.

Examples:
  snapctx collect "how are websocket connections authenticated"
  snapctx collect -o ctx.md "what does the billing worker do"
  snapctx collect --copy`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringVarP(&collectModel, "model", "m", "", "Model profile to use")
	collectCmd.Flags().IntVar(&collectMaxRounds, "max-rounds", 0, "Cap on tool rounds (default from config)")
	collectCmd.Flags().BoolVarP(&collectCopy, "copy", "c", false, "Copy the collected context to the clipboard")
	collectCmd.Flags().StringVarP(&collectOutput, "output", "o", "", "Write the collected context to a file")
	collectCmd.Flags().BoolVar(&collectRaw, "raw", false, "Print raw markdown without terminal rendering")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(collectModel, collectMaxRounds)

	name, mc, err := cfg.ResolveModel("")
	if err != nil {
		return err
	}
	provider, err := llm.NewProvider(name, mc.BaseURL, mc.APIKey, mc.Model)
	if err != nil {
		return err
	}

	root, err := os.Getwd()
	if err != nil {
		return err
	}

	sink := tools.NewContextSink()
	registry := llm.NewToolRegistry()
	registry.Register(tools.NewTreeTool(root))
	registry.Register(tools.NewReadFileTool(root))
	registry.Register(tools.NewSaveContextTool(sink))

	engine := llm.NewEngine(provider, registry)

	question := ""
	if len(args) > 0 {
		question = args[0]
	}

	req := llm.Request{
		Model: mc.Model,
		Messages: []llm.Message{
			llm.SystemText(prompt.CollectSystem(cfg.Collect.Instructions)),
			llm.UserText(prompt.CollectQuestion(root, question)),
		},
		Tools: registry.AllSpecs(),
		// The first round must explore; without this some models answer
		// from priors without ever looking at the project.
		ToolChoice: llm.ToolChoice{Mode: llm.ToolChoiceRequired},
		MaxRounds:  cfg.Collect.MaxRounds,
		Debug:      debug,
	}

	ctx, stop := signal.NotifyContext()
	defer stop()

	stream, err := engine.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	styles := ui.DefaultStyles()
	activity := ui.NewActivity(os.Stderr, styles)

	if err := consumeStream(stream, activity, styles); err != nil {
		return err
	}

	content := sink.String()
	if content == "" {
		fmt.Fprintln(os.Stderr, styles.Muted.Render("No context was saved."))
	} else if collectOutput != "" {
		if err := os.WriteFile(collectOutput, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", collectOutput, err)
		}
		fmt.Fprintln(os.Stderr, styles.FormatResult(true, "wrote "+collectOutput))
	} else if ui.IsTerminal() && !collectRaw {
		fmt.Println(ui.RenderMarkdown(content, ui.TerminalWidth()))
	} else {
		fmt.Print(content)
	}

	if content != "" && (collectCopy || cfg.Collect.Copy) {
		if err := clipboard.CopyText(content); err != nil {
			fmt.Fprintln(os.Stderr, styles.Error.Render("clipboard: "+err.Error()))
		} else {
			fmt.Fprintln(os.Stderr, styles.FormatResult(true, "copied to clipboard"))
		}
	}

	if showStats {
		usage := engine.Usage()
		activity.Stats(engine.Rounds(), sink.Count(), usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
	}
	llm.DebugUsage(debug, engine.Usage())

	return nil
}

// consumeStream drains engine events, printing tool activity to stderr.
// An interrupt while waiting on the model ends the run cleanly so the
// context collected in completed rounds still reaches the output path.
func consumeStream(stream llm.Stream, activity *ui.Activity, styles *ui.Styles) error {
	for {
		event, recvErr := stream.Recv()
		if recvErr == io.EOF {
			return nil
		}
		if recvErr != nil {
			if errors.Is(recvErr, context.Canceled) {
				fmt.Fprintln(os.Stderr, styles.Muted.Render("interrupted"))
				return nil
			}
			return recvErr
		}
		switch event.Type {
		case llm.EventTextDelta:
			if debug {
				fmt.Fprint(os.Stderr, event.Text)
			}
		case llm.EventToolExecStart:
			activity.ToolStart(event.ToolCallID, event.ToolName, event.ToolInfo)
		case llm.EventToolExecEnd:
			activity.ToolEnd(event.ToolCallID, event.ToolName, event.ToolSuccess)
		case llm.EventRetry:
			fmt.Fprintln(os.Stderr, styles.Muted.Render(fmt.Sprintf(
				"  retrying (%d/%d) in %.0fs...", event.RetryAttempt, event.RetryMaxAttempts, event.RetryWaitSecs)))
		case llm.EventError:
			if event.Err != nil {
				if errors.Is(event.Err, context.Canceled) {
					fmt.Fprintln(os.Stderr, styles.Muted.Render("interrupted"))
					return nil
				}
				return event.Err
			}
		}
	}
}
