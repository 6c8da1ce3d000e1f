// Package initcmder provides the init command for initializing a local .g4l
// directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/localcompute/g4l/pkg/cliui"
	"github.com/localcompute/g4l/pkg/config"
	"github.com/localcompute/g4l/pkg/dotdir"
)

const (
	dirName = ".g4l"

	fetchTimeout = 30 * time.Second
)

type initCommander struct {
	preset string
	out    io.Writer
}

const initLongDesc string = `Initialize a new .g4l/ directory in the current working directory.

Creates a local .g4l/ directory that takes precedence over the default
~/.g4l/ directory for configuration, chat sessions, model files, and
document indexes. A config.toml with default values is written unless one
already exists.

Use --preset to start from a backend preset (ollama, llamacpp) or from a
config.toml fetched over HTTP. A preset always overwrites config.toml.

Examples:
  g4l init
  g4l init --preset llamacpp
  g4l init --preset https://example.com/team/config.toml`

const initShortDesc string = "Initialize a local .g4l/ directory"

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		fmt.Sprintf("Config preset (%s) or URL of a config.toml", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func (c *initCommander) run(ctx context.Context) error {
	// Resolve the preset first so a bad one leaves nothing behind.
	var cfg *config.Config
	if c.preset != "" {
		var err error
		cfg, err = c.loadPreset(ctx)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	existed := err == nil && info.IsDir()

	ddm := dotdir.NewManager()
	if _, err := ddm.StorageDir(dir); err != nil {
		return fmt.Errorf("creating .g4l directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg == nil {
		if _, err := os.Stat(cfger.GetTarget()); err == nil {
			fmt.Fprintf(c.out, "  %s Already initialized: %s\n", cliui.SuccessMark, dir)
			return nil
		}
		cfg = config.NewDefaultConfig()
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	if existed {
		fmt.Fprintf(c.out, "  %s Updated %s\n", cliui.SuccessMark, cfger.GetTarget())
	} else {
		fmt.Fprintf(c.out, "  %s Initialized .g4l directory: %s\n", cliui.SuccessMark, dir)
	}
	return nil
}

func (c *initCommander) loadPreset(ctx context.Context) (*config.Config, error) {
	if strings.HasPrefix(c.preset, "http://") || strings.HasPrefix(c.preset, "https://") {
		return fetchConfig(ctx, c.preset)
	}
	return config.PresetConfig(c.preset)
}

// fetchConfig downloads and validates a config.toml.
func fetchConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("fetching remote config: empty body")
	}

	return config.ParseConfigTOML(data)
}
