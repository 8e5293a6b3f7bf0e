package synckv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the declarative form of node configuration, loadable
// from YAML or JSON. Zero values defer to the library defaults, so a
// minimal file only names what it changes.
type FileConfig struct {
	NodeID    string   `yaml:"node_id" json:"node_id"`
	BindAddr  string   `yaml:"bind_addr" json:"bind_addr"`
	Seeds     []string `yaml:"seeds" json:"seeds"`
	Discovery *bool    `yaml:"discovery" json:"discovery"`
	Leasing   *bool    `yaml:"leasing" json:"leasing"`
}

// LoadFile reads a configuration file. The format is chosen by
// extension: .yaml/.yml or .json.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("synckv: read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("synckv: parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("synckv: parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("synckv: unsupported config format: %s", ext)
	}

	return &config, nil
}

// Options converts the file configuration into the Option slice
// accepted by New. Explicit Option arguments appended after these win.
func (f *FileConfig) Options() []Option {
	var opts []Option
	if f.NodeID != "" {
		opts = append(opts, WithNodeID(f.NodeID))
	}
	if f.BindAddr != "" {
		opts = append(opts, WithBindAddr(f.BindAddr))
	}
	if len(f.Seeds) > 0 {
		opts = append(opts, WithSeeds(f.Seeds))
	}
	if f.Discovery != nil {
		opts = append(opts, WithDiscovery(*f.Discovery))
	}
	if f.Leasing != nil {
		opts = append(opts, WithLeasing(*f.Leasing))
	}
	return opts
}
