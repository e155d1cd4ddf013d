// Package npm bootstraps the package manager inside a prefix and
// installs requested packages with it.
package npm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// SetupError reports an unusable or failed package-manager bootstrap.
// There is no alternate bootstrap path; this aborts the pipeline.
type SetupError struct {
	Err    error
	Output string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("package manager setup failed: %v", e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Bootstrapper manages the npm binary bundled in a prefix.
type Bootstrapper struct {
	Prefix string
	Log    *log.Logger
}

func (b *Bootstrapper) binPath() string {
	return filepath.Join(b.Prefix, "bin", "npm")
}

// env returns the environment for npm invocations, pointing npm's
// prefix, module path, and PATH at the isolated installation so global
// installs land inside it.
func (b *Bootstrapper) env() []string {
	bin := filepath.Join(b.Prefix, "bin")
	env := os.Environ()
	env = append(env,
		"PATH="+bin+string(os.PathListSeparator)+os.Getenv("PATH"),
		"NPM_CONFIG_PREFIX="+b.Prefix,
		"NODE_PATH="+filepath.Join(b.Prefix, "lib", "node_modules"),
	)
	return env
}

// Ensure makes sure a working npm is present in the prefix. With an
// empty version the bundled npm is kept as-is; otherwise the bundled
// npm installs the requested version of itself into the prefix,
// replacing the bundled one.
func (b *Bootstrapper) Ensure(ctx context.Context, version string) error {
	if _, err := os.Stat(b.binPath()); err != nil {
		return &SetupError{Err: fmt.Errorf("bundled npm missing from prefix: %w", err)}
	}

	if version == "" || version == "bundled" {
		b.Log.Debug("keeping bundled npm", "prefix", b.Prefix)
		return nil
	}

	b.Log.Info("installing npm", "version", version)
	out, err := b.run(ctx, "install", "--global", "npm@"+version)
	if err != nil {
		return &SetupError{Err: err, Output: out}
	}
	return nil
}

// InstallPackages installs the packages globally into the prefix.
// Independent installs run concurrently, bounded by limit; the first
// failure cancels the rest.
func (b *Bootstrapper) InstallPackages(ctx context.Context, packages []string, limit int) error {
	if len(packages) == 0 {
		return nil
	}
	if limit < 1 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, pkg := range packages {
		g.Go(func() error {
			b.Log.Info("installing package", "package", pkg)
			out, err := b.run(gctx, "install", "--global", pkg)
			if err != nil {
				return fmt.Errorf("installing %s: %w\n%s", pkg, err, strings.TrimSpace(out))
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *Bootstrapper) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, b.binPath(), args...)
	cmd.Env = b.env()

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}

// ReadRequirements parses a requirements file: one package per line,
// blank lines and #-comments ignored.
func ReadRequirements(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading requirements: %w", err)
	}

	var packages []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		packages = append(packages, line)
	}
	return packages, nil
}
