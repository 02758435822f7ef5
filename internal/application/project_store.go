package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ProjectStore reads and writes project files on a file system. The
// encoding follows the file extension.
type ProjectStore struct {
	fs     afero.Fs
	loader *ProjectLoader
}

// NewProjectStore creates a store over fs that validates through loader.
// A nil fs selects the operating system's file system.
func NewProjectStore(fs afero.Fs, loader *ProjectLoader) *ProjectStore {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &ProjectStore{fs: fs, loader: loader}
}

// Open reads and validates the project at path.
// WARNING: The returned file may be shared through the loader's cache and
// MUST NOT be mutated.
func (s *ProjectStore) Open(ctx context.Context, path string) (*ProjectFile, error) {
	cleanPath := filepath.Clean(path)

	data, err := afero.ReadFile(s.fs, cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	file, err := s.loader.Load(ctx, data, FormatFromPath(cleanPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cleanPath, err)
	}
	return file, nil
}

// OpenGraph reads a project and builds a fresh graph from it.
func (s *ProjectStore) OpenGraph(ctx context.Context, path string, kinds *KindRegistry) (*Graph, error) {
	file, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return file.Build(kinds)
}

// Save writes file to path, creating parent directories as needed.
func (s *ProjectStore) Save(path string, file *ProjectFile) error {
	cleanPath := filepath.Clean(path)

	var buf bytes.Buffer
	if err := EncodeProject(&buf, file, FormatFromPath(cleanPath)); err != nil {
		return err
	}

	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(s.fs, cleanPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// SaveGraph exports graph and writes it to path.
func (s *ProjectStore) SaveGraph(path string, graph *Graph) error {
	return s.Save(path, Export(graph))
}

// EncodeProject writes file to w in the given format.
func EncodeProject(w io.Writer, file *ProjectFile, format Format) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(file); err != nil {
			return fmt.Errorf("JSON encode failed: %w", err)
		}
	default:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(file); err != nil {
			return fmt.Errorf("YAML encode failed: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("YAML encode failed: %w", err)
		}
	}
	return nil
}
