// Package builder drives the runtime's native build toolchain: an
// opaque configure / compile / install sequence run against an unpacked
// source tree.
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// Config carries the caller-supplied build parameters. It is passed
// opaquely to the external toolchain.
type Config struct {
	Prefix      string
	Jobs        int     // parallel compile jobs, >= 1
	LoadAverage float64 // make --load-average, 0 leaves it unset
	WithoutSSL  bool
	Debug       bool
	Profile     bool
}

// BuildError reports a non-zero exit from one toolchain stage, with the
// stage's captured output verbatim. Build failures are never retried.
type BuildError struct {
	Stage    string
	ExitCode int
	Output   string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d", e.Stage, e.ExitCode)
}

type Builder struct {
	Log *log.Logger
}

// stage is one external toolchain invocation.
type stage struct {
	name string
	argv []string
}

// stages builds the three toolchain invocations for a config. Exposed
// to Build and its tests only.
func stages(cfg Config) []stage {
	conf := []string{"./configure", "--prefix=" + cfg.Prefix}
	if cfg.WithoutSSL {
		conf = append(conf, "--without-ssl")
	}
	if cfg.Debug {
		conf = append(conf, "--debug")
	}
	if cfg.Profile {
		conf = append(conf, "--profile")
	}

	jobs := cfg.Jobs
	if jobs < 1 {
		jobs = 1
	}
	compile := []string{"make", "--jobs=" + strconv.Itoa(jobs)}
	if cfg.LoadAverage > 0 {
		compile = append(compile, fmt.Sprintf("--load-average=%g", cfg.LoadAverage))
	}

	return []stage{
		{name: "configure", argv: conf},
		{name: "compile", argv: compile},
		{name: "install", argv: []string{"make", "install"}},
	}
}

// Build runs configure, compile, and install in sourceDir. The call
// blocks for the full build; parallelism lives entirely inside the
// compile stage's job count. The first failing stage aborts the rest.
func (b *Builder) Build(ctx context.Context, sourceDir string, cfg Config) error {
	if _, err := os.Stat(sourceDir); err != nil {
		return fmt.Errorf("source tree: %w", err)
	}

	for _, st := range stages(cfg) {
		b.Log.Info("running build stage", "stage", st.name, "dir", sourceDir)
		b.Log.Debug("build command", "argv", strings.Join(st.argv, " "))

		if err := runStage(ctx, sourceDir, st); err != nil {
			return err
		}
	}
	return nil
}

func runStage(ctx context.Context, dir string, st stage) error {
	cmd := exec.CommandContext(ctx, st.argv[0], st.argv[1:]...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &BuildError{
			Stage:    st.name,
			ExitCode: exitErr.ExitCode(),
			Output:   out.String(),
		}
	}
	return fmt.Errorf("starting %s stage: %w", st.name, err)
}
