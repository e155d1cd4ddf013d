package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Managed-block markers for splicing into a host virtualenv's
// activation scripts. The markers make "already patched" an explicit,
// detectable state: patching replaces the block if present, otherwise
// appends it, never blind-concatenates.
const (
	markerBegin = ">>> nodevenv initialize >>>"
	markerEnd   = "<<< nodevenv initialize <<<"
)

// MaterializeError reports an unwritable or unpatchable activation
// script target.
type MaterializeError struct {
	Path string
	Err  error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("materializing %s: %v", e.Path, e.Err)
}

func (e *MaterializeError) Unwrap() error { return e.Err }

// Materializer writes activation scripts for a completed installation.
type Materializer struct {
	Prefix string // absolute target prefix
	Prompt string // shell prompt prefix, e.g. "(myenv)"
	Log    *log.Logger
}

// Materialize writes one standalone activation script per dialect into
// <prefix>/bin. Output is byte-identical across runs with the same
// inputs.
func (m *Materializer) Materialize(dialects []Dialect) error {
	binDir := filepath.Join(m.Prefix, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return &MaterializeError{Path: binDir, Err: err}
	}

	for _, d := range dialects {
		content, err := Script(m.Prefix, m.Prompt, d)
		if err != nil {
			return err
		}
		path := filepath.Join(binDir, d.ScriptName())
		if err := writeAtomic(path, content, 0o755); err != nil {
			return &MaterializeError{Path: path, Err: err}
		}
		m.Log.Debug("wrote activation script", "path", path, "dialect", d)
	}
	return nil
}

// Splice patches the host Python virtualenv's activation scripts so
// that activating the venv also activates this prefix. For each
// dialect whose activation file exists under the venv's bin directory,
// the managed block is replaced in place or appended once.
func (m *Materializer) Splice(venvDir string, dialects []Dialect) error {
	venvBin := filepath.Join(venvDir, "bin")
	if _, err := os.Stat(venvBin); err != nil {
		// Windows-style venv layout.
		venvBin = filepath.Join(venvDir, "Scripts")
	}

	patched := 0
	for _, d := range dialects {
		path := filepath.Join(venvBin, d.ScriptName())
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				m.Log.Debug("host env has no activation script for dialect", "dialect", d, "path", path)
				continue
			}
			return &MaterializeError{Path: path, Err: err}
		}

		info, err := os.Stat(path)
		if err != nil {
			return &MaterializeError{Path: path, Err: err}
		}

		updated := upsertBlock(string(content), m.SpliceBlock(d), d)
		if err := writeAtomic(path, []byte(updated), info.Mode().Perm()); err != nil {
			return &MaterializeError{Path: path, Err: err}
		}
		m.Log.Debug("spliced activation script", "path", path, "dialect", d)
		patched++
	}

	if patched == 0 {
		return &MaterializeError{
			Path: venvBin,
			Err:  fmt.Errorf("no activation scripts found for dialects %v", dialects),
		}
	}
	return nil
}

// SpliceBlock renders the managed block for a dialect: save the old
// PATH, prepend the prefix's bin directory, and export the isolation
// marker. The venv's own deactivate restores its saved PATH, which
// also drops this prepend.
func (m *Materializer) SpliceBlock(d Dialect) string {
	c := d.comment()
	bin := filepath.Join(m.Prefix, "bin")
	mod := filepath.Join(m.Prefix, "lib", "node_modules")

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", c, markerBegin)
	switch d {
	case Fish:
		fmt.Fprintf(&b, "set -gx _OLD_NODE_VIRTUAL_PATH $PATH\n")
		fmt.Fprintf(&b, "set -gx PATH %q $PATH\n", bin)
		fmt.Fprintf(&b, "set -gx NODE_PATH %q\n", mod)
		fmt.Fprintf(&b, "set -gx NODE_VIRTUAL_ENV %q\n", m.Prefix)
		fmt.Fprintf(&b, "set -gx NPM_CONFIG_PREFIX %q\n", m.Prefix)
	case Csh:
		fmt.Fprintf(&b, "setenv _OLD_NODE_VIRTUAL_PATH \"$PATH\"\n")
		fmt.Fprintf(&b, "setenv PATH \"%s:$PATH\"\n", bin)
		fmt.Fprintf(&b, "setenv NODE_PATH %q\n", mod)
		fmt.Fprintf(&b, "setenv NODE_VIRTUAL_ENV %q\n", m.Prefix)
		fmt.Fprintf(&b, "setenv NPM_CONFIG_PREFIX %q\n", m.Prefix)
	case Cmd:
		fmt.Fprintf(&b, "set \"_OLD_NODE_VIRTUAL_PATH=%%PATH%%\"\n")
		fmt.Fprintf(&b, "set \"PATH=%s;%%PATH%%\"\n", bin)
		fmt.Fprintf(&b, "set \"NODE_PATH=%s\"\n", mod)
		fmt.Fprintf(&b, "set \"NODE_VIRTUAL_ENV=%s\"\n", m.Prefix)
		fmt.Fprintf(&b, "set \"NPM_CONFIG_PREFIX=%s\"\n", m.Prefix)
	default:
		fmt.Fprintf(&b, "_OLD_NODE_VIRTUAL_PATH=\"$PATH\"\n")
		fmt.Fprintf(&b, "PATH=%q\":$PATH\"\n", bin)
		fmt.Fprintf(&b, "export PATH\n")
		fmt.Fprintf(&b, "NODE_PATH=%q\n", mod)
		fmt.Fprintf(&b, "export NODE_PATH\n")
		fmt.Fprintf(&b, "NODE_VIRTUAL_ENV=%q\n", m.Prefix)
		fmt.Fprintf(&b, "export NODE_VIRTUAL_ENV\n")
		fmt.Fprintf(&b, "NPM_CONFIG_PREFIX=%q\n", m.Prefix)
		fmt.Fprintf(&b, "export NPM_CONFIG_PREFIX\n")
	}
	fmt.Fprintf(&b, "%s %s", c, markerEnd)
	return b.String()
}

// upsertBlock replaces an existing managed block or appends one. A
// second run with the same inputs leaves the content byte-identical.
func upsertBlock(content, block string, d Dialect) string {
	c := d.comment()
	begin := c + " " + markerBegin
	end := c + " " + markerEnd

	if i := strings.Index(content, begin); i >= 0 {
		if j := strings.Index(content[i:], end); j >= 0 {
			return content[:i] + block + content[i+j+len(end):]
		}
	}

	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + block + "\n"
}

// writeAtomic writes content via a temp file and rename so a killed
// process never leaves a visible half-written script.
func writeAtomic(path string, content []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(content)
	cerr := tmp.Close()
	if werr != nil {
		os.Remove(tmpPath)
		return werr
	}
	if cerr != nil {
		os.Remove(tmpPath)
		return cerr
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
