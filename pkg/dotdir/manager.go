// Package dotdir manages the .g4l/ and ~/.g4l directories.
//
// The directory holds config.toml, the persisted chat session, local model
// files under models/, and sqlite-vec indexes under storage/.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the g4l directory.
	dirName = ".g4l"

	modelsDir  = "models"
	storageDir = "storage"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .g4l/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.g4l/ dir
//  3. Home ~/.g4l/ dir, created if missing
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating g4l directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// ModelsDir returns the models/ directory inside the resolved target.
func (m *Manager) ModelsDir(overrideDir string) (string, error) {
	return m.sub(overrideDir, modelsDir)
}

// StorageDir returns the storage/ directory inside the resolved target.
// Each index lives in its own storage.<id> subdirectory.
func (m *Manager) StorageDir(overrideDir string) (string, error) {
	return m.sub(overrideDir, storageDir)
}

func (m *Manager) sub(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	return path, nil
}

// localDirExists checks whether a .g4l/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
