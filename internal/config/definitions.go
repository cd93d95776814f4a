package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conduitchat/conduit/internal/domain"
)

// Definition files support ${VAR} references so API keys stay out of the
// files themselves. Expansion happens on the raw bytes before decoding.

type providersFile struct {
	Providers []domain.Provider `yaml:"providers"`
}

type toolsFile struct {
	Tools []domain.Tool `yaml:"tools"`
}

// LoadProviders reads the provider definition file.
func LoadProviders(path string) ([]domain.Provider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading provider definitions: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("decoding provider definitions: %w", err)
	}
	return file.Providers, nil
}

// LoadTools reads the tool definition file.
func LoadTools(path string) ([]domain.Tool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tool definitions: %w", err)
	}

	var file toolsFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &file); err != nil {
		return nil, fmt.Errorf("decoding tool definitions: %w", err)
	}
	return file.Tools, nil
}
