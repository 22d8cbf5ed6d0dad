package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProcessConfig describes an external command.
type ProcessConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
}

// ConfigFile represents the structure of models.yaml.
type ConfigFile struct {
	Models []ProcessConfig `yaml:"models" json:"models"`
	// Risk, when set, screens learner input before it is stored.
	Risk *ProcessConfig `yaml:"risk" json:"risk"`
}

// LoadConfig reads a configuration file (YAML or JSON). A missing file yields an empty config.
func LoadConfig(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ConfigFile{}, nil
		}
		return nil, fmt.Errorf("failed to read models config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	for i, m := range cfg.Models {
		if m.Name == "" || m.Command == "" {
			return nil, fmt.Errorf("%s: model %d needs a name and a command", path, i)
		}
	}
	if cfg.Risk != nil && cfg.Risk.Command == "" {
		return nil, fmt.Errorf("%s: risk needs a command", path)
	}
	return &cfg, nil
}
