package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Manifest is the declarative per-project environment description
// (nodevenv.yaml): which runtime and package-manager versions to
// install, which packages to seed, and which shells to target.
type Manifest struct {
	Node     string   `json:"node,omitempty"`
	NPM      string   `json:"npm,omitempty"`
	Packages []string `json:"packages,omitempty"`
	Dialects []string `json:"dialects,omitempty"`
	Mirrors  []string `json:"mirrors,omitempty"`
}

// LoadManifest reads and parses a nodevenv.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// configMap converts the manifest into viper config keys, leaving
// unset fields out so they do not mask lower-priority sources.
func (m *Manifest) configMap() map[string]any {
	cm := make(map[string]any)
	if m.Node != "" {
		cm["node"] = m.Node
	}
	if m.NPM != "" {
		cm["npm"] = m.NPM
	}
	if len(m.Packages) > 0 {
		cm["packages"] = m.Packages
	}
	if len(m.Dialects) > 0 {
		cm["dialects"] = m.Dialects
	}
	if len(m.Mirrors) > 0 {
		cm["mirrors"] = m.Mirrors
	}
	return cm
}
