package backend

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/localcompute/g4l/pkg/llm"
)

// ModelExt is the file extension appended to bare model keys.
const ModelExt = ".gguf"

// ModelResolver maps model keys to files under Dir.
type ModelResolver struct {
	Dir string
}

// Path returns where the file for model is expected. Keys that already end
// in ".gguf" or ".bin" are used as file names unchanged.
func (r ModelResolver) Path(model string) string {
	name := model
	if ext := strings.ToLower(filepath.Ext(name)); ext != ModelExt && ext != ".bin" {
		name += ModelExt
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.Dir, name)
}

// Resolve returns the path of an existing model file, or an error wrapping
// llm.ErrModelNotFound.
func (r ModelResolver) Resolve(model string) (string, error) {
	if model == "" {
		return "", fmt.Errorf("%w: empty model name", llm.ErrModelNotFound)
	}

	path := r.Path(model)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %s", llm.ErrModelNotFound, path)
	case err != nil:
		return "", fmt.Errorf("checking model %s: %w", path, err)
	case info.IsDir():
		return "", fmt.Errorf("%w: %s is a directory", llm.ErrModelNotFound, path)
	}
	return path, nil
}

// List returns the model keys available under Dir, without extension.
func (r ModelResolver) List() ([]string, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing models in %s: %w", r.Dir, err)
	}

	var models []string
	for _, e := range entries {
		if e.IsDir() || strings.ToLower(filepath.Ext(e.Name())) != ModelExt {
			continue
		}
		models = append(models, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	return models, nil
}
