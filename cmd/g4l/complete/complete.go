// Package completecmder provides the complete command for one-shot
// completions.
package completecmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/cliui"
	"github.com/localcompute/g4l/pkg/config"
	"github.com/localcompute/g4l/pkg/llm"
	"github.com/localcompute/g4l/pkg/logger"
	"github.com/localcompute/g4l/pkg/start"
)

var completeFlags = append(append([]string{}, config.EngineFlags...), config.RetrievalFlags...)

type completeCommander struct {
	configDir string
	debug     bool

	stream     bool
	jsonOutput bool
	jsonObject bool
	raw        bool
	maxTokens  int
	stop       []string
	system     string

	cfg    *config.Config
	logger *zap.Logger

	in  io.Reader
	out io.Writer
}

const completeLongDesc string = `Run a single completion and print the answer.

The prompt is taken from the arguments, or from stdin when none are given.
Answers are rendered as markdown on a terminal; pass --raw for plain text,
or --json for the OpenAI-shaped completion record (one chunk per line with
--stream).

Examples:
  g4l complete "Why is the sky blue?"
  g4l complete -r --mode subtle "What inventions did he do?"
  g4l complete --stream --stop "\n\n" "Write a haiku"
  echo "List three colors" | g4l complete --json-object --json`

const completeShortDesc string = "One-shot completion"

func NewCompleteCmd() *cobra.Command {
	cmder := &completeCommander{}

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: completeShortDesc,
		Long:  completeLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ForCommand(cmd, config.Flags, completeFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			prompt, err := cmder.prompt(args)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), prompt)
		},
	}

	config.AddRegisteredFlags(cmd, config.Flags, completeFlags)
	cmd.Flags().BoolVar(&cmder.stream, "stream", false, "Print the answer as it is generated")
	cmd.Flags().BoolVar(&cmder.jsonOutput, "json", false, "Print the completion record as JSON")
	cmd.Flags().BoolVar(&cmder.jsonObject, "json-object", false, "Reduce the answer to its first fenced JSON block")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Do not render markdown")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Stop after this many tokens (0 for no limit)")
	cmd.Flags().StringArrayVar(&cmder.stop, "stop", nil, "Stop sequence (repeatable)")
	cmd.Flags().StringVar(&cmder.system, "system", "", "System prompt")

	return cmd
}

func (c *completeCommander) prompt(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, err := io.ReadAll(c.in)
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}

	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("a prompt is required")
	}
	return prompt, nil
}

func (c *completeCommander) request(prompt string) *llm.ChatRequest {
	req := &llm.ChatRequest{
		Model: c.cfg.Engine.Model,
		Stop:  llm.StopWords(c.stop),
	}
	if c.system != "" {
		req.Messages = append(req.Messages, llm.NewTextMessage(llm.RoleSystem, c.system))
	}
	req.Messages = append(req.Messages, llm.NewTextMessage(llm.RoleUser, prompt))

	if c.maxTokens > 0 {
		req.MaxTokens = &c.maxTokens
	}
	if c.jsonObject {
		req.ResponseFormat = &llm.ResponseFormat{Type: llm.ResponseFormatJSONObject}
	}
	return req
}

func (c *completeCommander) run(ctx context.Context, prompt string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	stack, err := start.Open(ctx, c.cfg, start.Options{ConfigDir: c.configDir, Logger: c.logger})
	if err != nil {
		return err
	}
	defer stack.Close()

	req := c.request(prompt)
	if err := req.Validate(); err != nil {
		return err
	}

	if c.stream {
		res, err := stack.Engine.Stream(ctx, req)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(c.out)
		for chunk := range res.Chunks() {
			switch {
			case c.jsonOutput:
				if err := enc.Encode(chunk); err != nil {
					return err
				}
			case chunk.Delta != nil:
				fmt.Fprint(c.out, *chunk.Delta)
			}
		}
		if !c.jsonOutput {
			fmt.Fprintln(c.out)
		}
		return res.Err()
	}

	rec, err := stack.Engine.Create(ctx, req)
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return json.NewEncoder(c.out).Encode(rec)
	}

	_, err = fmt.Fprintln(c.out, c.render(rec.Content))
	return err
}

// render formats markdown for a terminal and leaves anything else as is.
func (c *completeCommander) render(content string) string {
	f, ok := c.out.(*os.File)
	if c.raw || c.jsonObject || !ok || !cliui.IsTerminal(f) {
		return content
	}

	rendered, err := cliui.RenderMarkdownFor(f, content)
	if err != nil {
		c.logger.Debug("markdown rendering failed", zap.Error(err))
	}
	return strings.TrimRight(rendered, "\n")
}
