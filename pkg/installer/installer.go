// Package installer unpacks a prebuilt runtime tarball into the target
// prefix.
package installer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/nodevenv/nodevenv/pkg/archive"
)

// subtrees are the archive directories carried into the prefix.
var subtrees = []string{"bin", "lib", "include", "share"}

type Installer struct {
	Log *log.Logger
}

// Install unpacks the artifact into prefix, stripping the archive's
// top-level directory and overwriting files from any previous run. The
// archive is extracted into a temporary directory inside the prefix
// first, so an interrupted run never leaves a half-written bin tree.
func (inst *Installer) Install(artifactPath, prefix string) error {
	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return fmt.Errorf("creating prefix: %w", err)
	}

	tmpDir, err := os.MkdirTemp(prefix, ".extract-*")
	if err != nil {
		return fmt.Errorf("creating extraction dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inst.Log.Debug("extracting artifact", "archive", artifactPath, "prefix", prefix)
	if err := archive.Extract(artifactPath, tmpDir, 1); err != nil {
		return err
	}

	// The distribution always ships bin/node; its absence means the
	// archive was not a runtime tarball.
	if _, err := os.Stat(filepath.Join(tmpDir, "bin", "node")); err != nil {
		return &archive.ExtractionError{
			Archive: artifactPath,
			Err:     fmt.Errorf("archive is missing bin/node"),
		}
	}

	for _, tree := range subtrees {
		src := filepath.Join(tmpDir, tree)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := moveTree(src, filepath.Join(prefix, tree)); err != nil {
			return fmt.Errorf("installing %s/: %w", tree, err)
		}
	}

	inst.Log.Debug("runtime installed", "prefix", prefix)
	return nil
}

// moveTree moves every entry of src into dst, replacing entries left by
// a previous run. Renames stay within the prefix filesystem.
func moveTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		target := filepath.Join(dst, e.Name())
		if err := os.RemoveAll(target); err != nil {
			return err
		}
		if err := os.Rename(filepath.Join(src, e.Name()), target); err != nil {
			return err
		}
	}
	return nil
}
