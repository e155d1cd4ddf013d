package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// SnapshotFileName records the options an environment was created
// with, inside the prefix.
const SnapshotFileName = "install.toml"

// SaveSnapshot writes the resolved options into the prefix so a later
// inspection (or re-run) can see how the environment was built. The
// write goes through a temp file and rename; a killed process never
// leaves a visible half-written snapshot.
func SaveSnapshot(envDir string, opts *Options) error {
	data, err := toml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshaling option snapshot: %w", err)
	}
	path := filepath.Join(envDir, SnapshotFileName)

	tmp, err := os.CreateTemp(envDir, "."+SnapshotFileName+"-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, werr)
	}
	if cerr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, cerr)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving %s into place: %w", path, err)
	}
	return nil
}

// LoadSnapshot reads a previously written option snapshot.
func LoadSnapshot(envDir string) (*Options, error) {
	path := filepath.Join(envDir, SnapshotFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	opts := &Options{}
	if err := toml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return opts, nil
}
