// Package configcmder provides the config command for managing persistent
// g4l configuration stored in the .g4l/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localcompute/g4l/pkg/cliui"
	"github.com/localcompute/g4l/pkg/config"
)

const configLongDesc string = `Manage persistent g4l configuration.

Configuration is stored as config.toml in the .g4l/ directory and provides
default values for command flags. CLI flags and G4L_* environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  engine.backend, engine.target, engine.models_dir, engine.model,
  engine.gpu_layers, engine.cores, engine.use_mmap, engine.use_mlock,
  engine.offload_kqv, engine.context_window, engine.temperature,
  retrieval.enabled, retrieval.mode, retrieval.documents_dir, retrieval.require,
  vector_store.provider, vector_store.target, vector_store.sqlite_path,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  api.listen, events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  g4l config set <key> <value>    Set a configuration value
  g4l config get <key>            Get a configuration value
  g4l config list                 List all configuration values

Examples:
  g4l config set engine.model llama3.2
  g4l config set retrieval.mode aggressive
  g4l config get engine.backend
  g4l config list`

const configShortDesc string = "Manage persistent g4l configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
