// Package config resolves pipeline options with viper precedence:
// CLI flags > NODEVENV_* environment > nodevenv.yaml manifest >
// ~/.nodevenv/config.toml. Everything the pipeline needs is threaded
// through the resulting Options value; no stage reads ambient state.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nodevenv/nodevenv/pkg/fetch"
	"github.com/spf13/viper"
)

// GlobalConfigDirName is the per-user configuration directory under
// the home directory.
const GlobalConfigDirName = ".nodevenv"

// ManifestFileName is the optional per-project environment manifest.
const ManifestFileName = "nodevenv.yaml"

// Options is the fully resolved, read-only configuration for one
// pipeline run.
type Options struct {
	EnvDir string `mapstructure:"-" toml:"env_dir"`

	Node string `mapstructure:"node" toml:"node"`
	NPM  string `mapstructure:"npm" toml:"npm,omitempty"`

	Mirrors  []string `mapstructure:"mirrors" toml:"mirrors"`
	CacheDir string   `mapstructure:"cache_dir" toml:"cache_dir,omitempty"`
	Retries  int      `mapstructure:"retries" toml:"retries"`

	Source      bool    `mapstructure:"source" toml:"source"`
	Jobs        int     `mapstructure:"jobs" toml:"jobs"`
	LoadAverage float64 `mapstructure:"load_average" toml:"load_average,omitempty"`
	WithoutSSL  bool    `mapstructure:"without_ssl" toml:"without_ssl"`
	Debug       bool    `mapstructure:"debug" toml:"debug"`
	Profile     bool    `mapstructure:"profile" toml:"profile"`
	CleanSrc    bool    `mapstructure:"clean_src" toml:"clean_src"`

	Requirements       string   `mapstructure:"requirements" toml:"requirements,omitempty"`
	Packages           []string `mapstructure:"packages" toml:"packages,omitempty"`
	InstallConcurrency int      `mapstructure:"install_concurrency" toml:"install_concurrency"`

	Prompt      string   `mapstructure:"prompt" toml:"prompt,omitempty"`
	Dialects    []string `mapstructure:"dialects" toml:"dialects"`
	PythonVenv  string   `mapstructure:"python_venv" toml:"python_venv,omitempty"`
	Force       bool     `mapstructure:"force" toml:"force"`
}

// New returns a viper instance carrying the option defaults. The
// caller binds flags on top and finishes with Resolve.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("node", "latest")
	v.SetDefault("mirrors", fetch.DefaultMirrors)
	v.SetDefault("retries", 2)
	v.SetDefault("jobs", 2)
	v.SetDefault("install_concurrency", 1)
	v.SetDefault("dialects", []string{"bash"})

	v.SetEnvPrefix("NODEVENV")
	v.AutomaticEnv()
	return v
}

// Resolve layers the global config file and the project manifest under
// whatever flags and environment already set on v, then unmarshals.
// workDir is where the manifest is looked up; pass "" to skip.
func Resolve(v *viper.Viper, workDir string) (*Options, error) {
	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, GlobalConfigDirName, "config.toml")
		if _, err := os.Stat(global); err == nil {
			v.SetConfigFile(global)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", global, err)
			}
		}
	}

	if workDir != "" {
		manifestPath := filepath.Join(workDir, ManifestFileName)
		if _, err := os.Stat(manifestPath); err == nil {
			m, err := LoadManifest(manifestPath)
			if err != nil {
				return nil, err
			}
			if err := v.MergeConfigMap(m.configMap()); err != nil {
				return nil, fmt.Errorf("merging %s: %w", manifestPath, err)
			}
		}
	}

	opts := &Options{}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("unmarshaling options: %w", err)
	}
	return opts, nil
}
