package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// SystemConfig represents the global configuration file
// (~/.pipegate/config.yaml). This is tool-level configuration separate
// from pipeline definitions.
type SystemConfig struct {
	Notify             NotifyConfig    `yaml:"notify"`
	Redaction          RedactionConfig `yaml:"redaction"`
	MaxConcurrentStages int            `yaml:"max_concurrent_stages"`
	MaxOutputSizeBytes  int            `yaml:"max_output_size_bytes"`
}

// NotifyConfig configures the default report delivery endpoint.
type NotifyConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RedactionConfig configures how captured tool output is sanitized.
type RedactionConfig struct {
	HashMode HashModeConfig `yaml:"hash_mode"`
	Patterns []string       `yaml:"patterns"`
}

// HashModeConfig controls hash-based redaction.
type HashModeConfig struct {
	Salt    string `yaml:"salt"`
	Enabled bool   `yaml:"enabled"`
}

// DefaultSystemConfig returns a SystemConfig with safe defaults for all
// fields. Used when no system config file exists, so pipegate works
// out-of-the-box without configuration.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		Redaction: RedactionConfig{
			HashMode: HashModeConfig{
				Enabled: false,
			},
			Patterns: []string{},
		},
		MaxConcurrentStages: 0, // 0 means derive from CPU count
		MaxOutputSizeBytes:  0, // 0 means no limit
	}
}

// LoadSystemConfig loads the system configuration from the specified path.
// If the file does not exist, returns DefaultSystemConfig().
func LoadSystemConfig(path string) (*SystemConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultSystemConfig(), nil
	}

	//nolint:gosec // G304: path is the user's own config file, validated to exist above
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read system config: %w", err)
	}

	var config SystemConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse system config: %w", err)
	}

	return &config, nil
}
