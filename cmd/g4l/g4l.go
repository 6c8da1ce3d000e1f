// Package g4lcmder
package g4lcmder

import (
	"github.com/spf13/cobra"

	benchcmder "github.com/localcompute/g4l/cmd/g4l/bench"
	chatcmder "github.com/localcompute/g4l/cmd/g4l/chat"
	completecmder "github.com/localcompute/g4l/cmd/g4l/complete"
	configcmder "github.com/localcompute/g4l/cmd/g4l/config"
	indexcmder "github.com/localcompute/g4l/cmd/g4l/index"
	initcmder "github.com/localcompute/g4l/cmd/g4l/init"
	retrievecmder "github.com/localcompute/g4l/cmd/g4l/retrieve"
	servecmder "github.com/localcompute/g4l/cmd/g4l/serve"
	versioncmder "github.com/localcompute/g4l/cmd/version"
)

const g4lLongDesc string = `g4l runs chat completions against a local language model,
optionally grounded in passages retrieved from your own documents.

Get started:
  g4l init --preset ollama     Create a local .g4l/ directory
  g4l index                    Index the documents directory
  g4l chat -r                  Chat with retrieval augmentation
  g4l serve                    Run the OpenAI-compatible API server`

const g4lShortDesc string = "g4l - local LLM completions with document retrieval"

func NewG4LCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "g4l",
		Short:         g4lShortDesc,
		Long:          g4lLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .g4l directory (default: ./.g4l, then ~/.g4l)")

	// Add subcommands
	cmd.AddCommand(benchcmder.NewBenchCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(completecmder.NewCompleteCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(retrievecmder.NewRetrieveCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
