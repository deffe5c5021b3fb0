package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// LoadPipeline loads and parses a pipeline from a YAML file.
// It applies stage defaults; call Validate separately before execution.
func LoadPipeline(path string) (*Pipeline, error) {
	// os.OpenRoot confines the read to the pipeline's directory so a
	// crafted path cannot escape via symlinks.
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline directory: %w", err)
	}
	defer root.Close()

	file, err := root.Open(base)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline: %w", err)
	}
	defer file.Close()

	return LoadPipelineFromReader(file)
}

// LoadPipelineFromReader loads and parses a pipeline from an io.Reader.
// This is useful for testing with in-memory YAML data.
func LoadPipelineFromReader(r io.Reader) (*Pipeline, error) {
	var pipeline Pipeline

	// Strict parsing - reject unknown fields
	decoder := yaml.NewDecoder(r, yaml.DisallowUnknownField())

	if err := decoder.Decode(&pipeline); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	pipeline.ApplyDefaults()

	return &pipeline, nil
}
