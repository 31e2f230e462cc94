package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harborml/skiff/internal/config"
	"github.com/harborml/skiff/internal/llm"
	"github.com/harborml/skiff/internal/orchestrator"
	"github.com/harborml/skiff/internal/output"
)

var chatCmd = &cobra.Command{
	Use:   "chat [prompt]",
	Short: "Chat with an AI provider",
	Long: `Send a chat prompt to a provider and stream the reply.

Without --provider the request is routed by intent detection: prompts
that read like image, embedding, or speech requests are matched against
providers advertising those capabilities, everything else goes to a
chat-capable provider.

Examples:
  skiff chat "explain exponential backoff"
  skiff chat --provider ollama --model llama3.2 "hello"
  skiff chat --system "answer in French" "how are you?"
  skiff chat --interactive`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringP("provider", "p", "", "provider id (skips intent routing)")
	chatCmd.Flags().StringP("model", "m", "", "model override for this request")
	chatCmd.Flags().String("system", "", "system prompt")
	chatCmd.Flags().Float32("temperature", 0.7, "sampling temperature")
	chatCmd.Flags().Int("max-tokens", 0, "response token limit (0 = provider default)")
	chatCmd.Flags().Bool("no-stream", false, "wait for the complete reply instead of streaming")
	chatCmd.Flags().BoolP("interactive", "i", false, "start an interactive session with conversation history")

	rootCmd.AddCommand(chatCmd)
}

// validateChatArgs checks the prompt/interactive combination before any
// provider work happens.
func validateChatArgs(args []string, interactive bool) error {
	if interactive && len(args) > 0 {
		return fmt.Errorf("--interactive does not take a prompt argument")
	}
	if !interactive && len(args) == 0 {
		return fmt.Errorf("a prompt is required unless --interactive is set")
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	providerID, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	system, _ := cmd.Flags().GetString("system")
	temperature, _ := cmd.Flags().GetFloat32("temperature")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")
	noStream, _ := cmd.Flags().GetBool("no-stream")
	interactive, _ := cmd.Flags().GetBool("interactive")

	if err := validateChatArgs(args, interactive); err != nil {
		return err
	}

	logger := newLogger()
	o, err := newOrchestrator(logger)
	if err != nil {
		return err
	}
	defer o.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	base := llm.ChatRequest{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	if interactive {
		return runInteractive(ctx, cmd, o, base, providerID, system, logger)
	}

	req := base
	if system != "" {
		req.Messages = append(req.Messages, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	req.Messages = append(req.Messages, llm.Message{Role: llm.RoleUser, Content: args[0]})

	format := output.ParseFormat(viper.GetString("format"))

	if noStream || format == output.FormatJSON {
		resp, err := o.Chat(ctx, providerID, "", req)
		if err != nil {
			return err
		}
		if format == output.FormatJSON {
			result := map[string]interface{}{
				"prompt": args[0],
				"answer": resp.Content,
				"model":  resp.Model,
			}
			if resp.TokensTotal > 0 {
				result["usage"] = map[string]int{
					"prompt_tokens": resp.TokensPrompt,
					"total_tokens":  resp.TokensTotal,
				}
			}
			return output.New(cmd.OutOrStdout(), output.FormatJSON).WriteJSON(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
		return nil
	}

	events, err := o.ChatStream(ctx, providerID, "", req)
	if err != nil {
		return err
	}
	if err := printStream(cmd, events); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

// printStream writes deltas as they arrive and surfaces stream errors.
func printStream(cmd *cobra.Command, events <-chan llm.StreamEvent) error {
	wrote := false
	for ev := range events {
		if ev.Err != nil {
			if wrote {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return ev.Err
		}
		if ev.Delta != "" {
			fmt.Fprint(cmd.OutOrStdout(), ev.Delta)
			wrote = true
		}
	}
	return nil
}

// runInteractive reads prompts from stdin and keeps the exchange in a
// conversation so each turn sees the prior history. Config file edits
// are picked up between turns.
func runInteractive(ctx context.Context, cmd *cobra.Command, o *orchestrator.Orchestrator, base llm.ChatRequest, providerID, system string, logger *slog.Logger) error {
	conv, err := o.Conversations().Create("")
	if err != nil {
		return err
	}
	if system != "" {
		if err := o.Conversations().AddMessage(conv.ID, llm.Message{Role: llm.RoleSystem, Content: system}); err != nil {
			return err
		}
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	startConfigWatch(watchCtx, logger)

	fmt.Fprintln(cmd.OutOrStdout(), "Interactive chat. Type 'exit' or Ctrl-D to quit.")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(cmd.OutOrStdout(), "> ")
		if !scanner.Scan() {
			fmt.Fprintln(cmd.OutOrStdout())
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		req := base
		req.Messages = []llm.Message{{Role: llm.RoleUser, Content: line}}
		events, err := o.ChatStream(ctx, providerID, conv.ID, req)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		if err := printStream(cmd, events); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
}

// startConfigWatch reloads viper when the config file changes on disk.
// No-op when no config file is in use.
func startConfigWatch(ctx context.Context, logger *slog.Logger) {
	path := viper.ConfigFileUsed()
	if path == "" {
		return
	}
	w := config.NewWatcher(path, func() {
		if err := viper.ReadInConfig(); err != nil {
			logger.Error("config reload failed", "path", path, "error", err)
			return
		}
		logger.Info("config reloaded", "path", path)
	}, logger)
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()
}
