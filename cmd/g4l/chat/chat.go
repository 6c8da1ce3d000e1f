// Package chatcmder provides the chat command for interactive completions
// against the configured local model.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/cliui"
	"github.com/localcompute/g4l/pkg/config"
	"github.com/localcompute/g4l/pkg/dotdir"
	"github.com/localcompute/g4l/pkg/engine"
	"github.com/localcompute/g4l/pkg/llm"
	"github.com/localcompute/g4l/pkg/logger"
	"github.com/localcompute/g4l/pkg/start"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("g4l> ")
)

var chatFlags = append(append([]string{}, config.EngineFlags...), config.RetrievalFlags...)

type chatCommander struct {
	configDir string
	fresh     bool
	system    string
	debug     bool

	cfg    *config.Config
	engine *engine.Engine
	ddm    *dotdir.Manager
	logger *zap.Logger

	in  io.Reader
	out io.Writer
}

const chatLongDesc string = `Start an interactive chat session with the configured model.

Responses stream as they are generated. With retrieval enabled (-r), each
message is answered from passages of the indexed documents; the index is
built on first use.

The conversation is saved in the .g4l/ directory after every reply and
resumed the next time "g4l chat" runs. Pass --new to start over.

Commands inside the session:
  /reset    Forget the conversation
  /exit     Quit (Ctrl+D works too)

Examples:
  g4l chat
  g4l chat --model llama3.2 -r --mode aggressive
  g4l chat --new --system "Answer in one sentence."`

const chatShortDesc string = "Interactive chat with the local model"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ForCommand(cmd, config.Flags, chatFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	config.AddRegisteredFlags(cmd, config.Flags, chatFlags)
	cmd.Flags().BoolVar(&cmder.fresh, "new", false, "Ignore the saved conversation and start a new one")
	cmd.Flags().StringVar(&cmder.system, "system", "", "System prompt for a new conversation")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	stack, err := start.Open(ctx, c.cfg, start.Options{ConfigDir: c.configDir, Logger: c.logger})
	if err != nil {
		return err
	}
	defer stack.Close()

	c.engine = stack.Engine
	c.ddm = dotdir.NewManager()

	messages, err := c.resume()
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(c.cfg.Engine.Model))
	if stack.Retriever != nil {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Retrieval:"), cliui.ValueStyle.Render(string(stack.Retriever.Mode())))
	}
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /reset to start over, /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}
		if input == "/reset" {
			messages = c.initialMessages()
			if err := c.ddm.ClearSession(c.configDir); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "  %s Conversation cleared\n\n", cliui.SuccessMark)
			continue
		}

		messages = append(messages, llm.NewTextMessage(llm.RoleUser, input))

		reply, err := c.sendAndStream(ctx, messages)
		if err != nil {
			fmt.Fprintf(c.out, "\n  %s %v\n\n", cliui.FailMark, err)
			// Drop the failed turn so the user can retry it.
			messages = messages[:len(messages)-1]
			continue
		}

		messages = append(messages, llm.NewTextMessage(llm.RoleAssistant, reply))
		if err := c.ddm.SaveSession(&dotdir.SessionState{Model: c.cfg.Engine.Model, Messages: messages}, c.configDir); err != nil {
			c.logger.Warn("could not save session", zap.Error(err))
		}

		fmt.Fprint(c.out, "\n\n")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// resume returns the saved conversation, or a new one when --new is set,
// nothing was saved, or the saved one belongs to a different model.
func (c *chatCommander) resume() ([]llm.ChatMessage, error) {
	if c.fresh {
		fmt.Fprintf(c.out, "\n  %s New conversation\n", cliui.DimStyle.Render("●"))
		return c.initialMessages(), nil
	}

	session, err := c.ddm.LoadSession(c.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if session == nil || session.Model != c.cfg.Engine.Model || len(session.Messages) == 0 {
		fmt.Fprintf(c.out, "\n  %s New conversation\n", cliui.DimStyle.Render("●"))
		return c.initialMessages(), nil
	}

	fmt.Fprintf(c.out, "\n  %s Resuming conversation %s\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(session.Messages))),
	)
	return session.Messages, nil
}

func (c *chatCommander) initialMessages() []llm.ChatMessage {
	if c.system == "" {
		return nil
	}
	return []llm.ChatMessage{llm.NewTextMessage(llm.RoleSystem, c.system)}
}

// sendAndStream streams a completion of messages to the output and returns
// the full reply.
func (c *chatCommander) sendAndStream(ctx context.Context, messages []llm.ChatMessage) (string, error) {
	c.logger.Debug("sending chat request",
		zap.String("model", c.cfg.Engine.Model),
		zap.Int("message_count", len(messages)),
	)

	res, err := c.engine.Stream(ctx, &llm.ChatRequest{
		Model:    c.cfg.Engine.Model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}

	fmt.Fprint(c.out, assistantPrompt)

	var reply strings.Builder
	for chunk := range res.Chunks() {
		if chunk.Delta == nil {
			continue
		}
		fmt.Fprint(c.out, *chunk.Delta)
		reply.WriteString(*chunk.Delta)
	}

	return reply.String(), res.Err()
}
