// Package env orchestrates the environment construction pipeline:
// resolve -> fetch -> install or build -> package-manager bootstrap ->
// materialize. Stages run strictly in sequence and the first failure
// aborts the rest; the prefix is left in the state of the last
// successful stage.
package env

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/nodevenv/nodevenv/pkg/archive"
	"github.com/nodevenv/nodevenv/pkg/builder"
	"github.com/nodevenv/nodevenv/pkg/catalog"
	"github.com/nodevenv/nodevenv/pkg/config"
	"github.com/nodevenv/nodevenv/pkg/fetch"
	"github.com/nodevenv/nodevenv/pkg/installer"
	"github.com/nodevenv/nodevenv/pkg/npm"
	"github.com/nodevenv/nodevenv/pkg/shell"
)

// ErrPrefixExists reports a pre-existing, non-empty target prefix
// without --force. The caller decides whether to confirm and retry.
var ErrPrefixExists = errors.New("environment directory already exists")

// SystemVersion skips runtime installation and materializes an
// environment around the system-wide runtime.
const SystemVersion = "system"

type resolver interface {
	Resolve(ctx context.Context, spec string, platform catalog.Platform) (*catalog.ResolvedVersion, error)
}

type fetcher interface {
	Fetch(ctx context.Context, art fetch.Artifact, mirrors []string, destDir string) (string, error)
}

type runtimeInstaller interface {
	Install(artifactPath, prefix string) error
}

type runtimeBuilder interface {
	Build(ctx context.Context, sourceDir string, cfg builder.Config) error
}

type bootstrapper interface {
	Ensure(ctx context.Context, version string) error
	InstallPackages(ctx context.Context, packages []string, limit int) error
}

type materializer interface {
	Materialize(dialects []shell.Dialect) error
	Splice(venvDir string, dialects []shell.Dialect) error
}

// Creator runs the pipeline for one target prefix. A Creator owns its
// prefix exclusively for the duration of Create; concurrent invocations
// against the same prefix are a caller error.
type Creator struct {
	Opts     *config.Options
	Platform catalog.Platform
	Log      *log.Logger

	Catalog   resolver
	Fetcher   fetcher
	Installer runtimeInstaller
	Builder   runtimeBuilder

	// Constructed per-prefix when nil; injectable for tests.
	NPM   bootstrapper
	Shell materializer
}

// NewCreator wires the concrete pipeline stages from resolved options.
func NewCreator(opts *config.Options, logger *log.Logger) *Creator {
	client := fetch.NewClient(opts.CacheDir, opts.Retries, logger)
	return &Creator{
		Opts:     opts,
		Platform: catalog.HostPlatform(),
		Log:      logger,
		Catalog: &catalog.Client{
			Mirrors: opts.Mirrors,
			HTTP:    client,
			Log:     logger,
		},
		Fetcher:   client,
		Installer: &installer.Installer{Log: logger},
		Builder:   &builder.Builder{Log: logger},
	}
}

// Create runs the full pipeline.
func (c *Creator) Create(ctx context.Context) error {
	envDir, err := filepath.Abs(c.Opts.EnvDir)
	if err != nil {
		return fmt.Errorf("resolving environment path: %w", err)
	}

	if err := c.checkPrefix(envDir); err != nil {
		return err
	}
	if err := layout(envDir); err != nil {
		return err
	}

	system := c.Opts.Node == SystemVersion
	if !system {
		if err := c.installRuntime(ctx, envDir); err != nil {
			return err
		}
	}

	if err := config.SaveSnapshot(envDir, c.Opts); err != nil {
		return err
	}

	if !system {
		if err := c.ensureNPM(ctx, envDir); err != nil {
			return err
		}
	}

	if err := c.materialize(envDir); err != nil {
		return err
	}

	if err := c.installPackages(ctx, envDir); err != nil {
		return err
	}

	if c.Opts.CleanSrc {
		if err := os.RemoveAll(filepath.Join(envDir, "src")); err != nil {
			return fmt.Errorf("cleaning source tree: %w", err)
		}
	}

	c.Log.Info("environment ready", "prefix", envDir)
	return nil
}

// checkPrefix enforces exclusive fresh use of the prefix unless the
// caller forced reuse.
func (c *Creator) checkPrefix(envDir string) error {
	entries, err := os.ReadDir(envDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("inspecting %s: %w", envDir, err)
	}
	if len(entries) > 0 && !c.Opts.Force {
		return fmt.Errorf("%s: %w", envDir, ErrPrefixExists)
	}
	return nil
}

// layout creates the prefix directory skeleton.
func layout(envDir string) error {
	for _, dir := range []string{
		filepath.Join(envDir, "bin"),
		filepath.Join(envDir, "lib", "node_modules"),
		filepath.Join(envDir, "include"),
		filepath.Join(envDir, "share"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// installRuntime resolves the version spec and installs a prebuilt
// artifact, or builds from source when no prebuilt artifact exists for
// the platform or a source build was forced.
func (c *Creator) installRuntime(ctx context.Context, envDir string) error {
	rv, err := c.Catalog.Resolve(ctx, c.Opts.Node, c.Platform)
	if err != nil {
		return err
	}
	c.Log.Info("resolved version", "spec", c.Opts.Node, "version", rv.Version, "lts", rv.LTS)

	desc, ok := rv.Binary()
	fromSource := c.Opts.Source || !ok
	if fromSource {
		if desc, ok = rv.Source(); !ok {
			return fmt.Errorf("release v%s has no artifact for %s: %w",
				rv.Version, c.Platform, catalog.ErrVersionNotFound)
		}
		if !c.Opts.Source {
			c.Log.Info("no prebuilt artifact for platform, building from source",
				"platform", c.Platform)
		}
	}

	srcDir := filepath.Join(envDir, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", srcDir, err)
	}

	art := fetch.Artifact{
		Name:     desc.Name,
		URLPath:  desc.URLPath,
		Checksum: desc.Checksum,
		Size:     desc.Size,
		CacheKey: filepath.Join(desc.Version, desc.Platform, desc.Name),
	}
	path, err := c.Fetcher.Fetch(ctx, art, c.Opts.Mirrors, srcDir)
	if err != nil {
		return err
	}

	if !fromSource {
		return c.Installer.Install(path, envDir)
	}

	if err := archive.Extract(path, srcDir, 0); err != nil {
		return err
	}
	return c.Builder.Build(ctx, filepath.Join(srcDir, "node-v"+rv.Version), builder.Config{
		Prefix:      envDir,
		Jobs:        c.Opts.Jobs,
		LoadAverage: c.Opts.LoadAverage,
		WithoutSSL:  c.Opts.WithoutSSL,
		Debug:       c.Opts.Debug,
		Profile:     c.Opts.Profile,
	})
}

func (c *Creator) bootstrapper(envDir string) bootstrapper {
	if c.NPM != nil {
		return c.NPM
	}
	return &npm.Bootstrapper{Prefix: envDir, Log: c.Log}
}

func (c *Creator) ensureNPM(ctx context.Context, envDir string) error {
	return c.bootstrapper(envDir).Ensure(ctx, c.Opts.NPM)
}

func (c *Creator) materialize(envDir string) error {
	dialects, err := shell.ParseDialects(c.Opts.Dialects)
	if err != nil {
		return err
	}

	prompt := c.Opts.Prompt
	if prompt == "" {
		prompt = "(" + filepath.Base(envDir) + ")"
	}

	m := c.Shell
	if m == nil {
		m = &shell.Materializer{Prefix: envDir, Prompt: prompt, Log: c.Log}
	}

	if c.Opts.PythonVenv != "" {
		return m.Splice(c.Opts.PythonVenv, dialects)
	}
	return m.Materialize(dialects)
}

// installPackages seeds the environment with the manifest's package
// list plus any requirements file.
func (c *Creator) installPackages(ctx context.Context, envDir string) error {
	packages := append([]string(nil), c.Opts.Packages...)
	if c.Opts.Requirements != "" {
		reqs, err := npm.ReadRequirements(c.Opts.Requirements)
		if err != nil {
			return err
		}
		packages = append(packages, reqs...)
	}
	if len(packages) == 0 {
		return nil
	}
	return c.bootstrapper(envDir).InstallPackages(ctx, packages, c.Opts.InstallConcurrency)
}
