package npm

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

// fakePrefix creates a prefix whose bin/npm is a shell script that
// appends its arguments to <prefix>/npm-calls.log.
func fakePrefix(t *testing.T, exitCode string) string {
	t.Helper()
	prefix := t.TempDir()
	bin := filepath.Join(prefix, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	script := `#!/bin/sh
echo "$@" >> "$(dirname "$0")/../npm-calls.log"
exit ` + exitCode + "\n"
	if err := os.WriteFile(filepath.Join(bin, "npm"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return prefix
}

func calls(t *testing.T, prefix string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(prefix, "npm-calls.log"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func newBootstrapper(prefix string) *Bootstrapper {
	return &Bootstrapper{Prefix: prefix, Log: log.New(io.Discard)}
}

func TestEnsureBundledIsNoOp(t *testing.T) {
	prefix := fakePrefix(t, "0")
	if err := newBootstrapper(prefix).Ensure(context.Background(), ""); err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if got := calls(t, prefix); got != nil {
		t.Errorf("bundled npm was invoked: %v", got)
	}
}

func TestEnsureInstallsRequestedVersion(t *testing.T) {
	prefix := fakePrefix(t, "0")
	if err := newBootstrapper(prefix).Ensure(context.Background(), "9.8.1"); err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	got := calls(t, prefix)
	if len(got) != 1 || got[0] != "install --global npm@9.8.1" {
		t.Errorf("npm calls = %v, want one self-install", got)
	}
}

func TestEnsureMissingNPM(t *testing.T) {
	err := newBootstrapper(t.TempDir()).Ensure(context.Background(), "")
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("error = %v, want SetupError", err)
	}
}

func TestEnsureBrokenNPM(t *testing.T) {
	prefix := fakePrefix(t, "1")
	err := newBootstrapper(prefix).Ensure(context.Background(), "9.8.1")
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("error = %v, want SetupError", err)
	}
}

func TestInstallPackages(t *testing.T) {
	prefix := fakePrefix(t, "0")
	packages := []string{"typescript", "eslint@8.50.0"}

	if err := newBootstrapper(prefix).InstallPackages(context.Background(), packages, 1); err != nil {
		t.Fatalf("InstallPackages returned error: %v", err)
	}

	got := calls(t, prefix)
	want := []string{"install --global typescript", "install --global eslint@8.50.0"}
	if len(got) != len(want) {
		t.Fatalf("npm calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInstallPackagesFailure(t *testing.T) {
	prefix := fakePrefix(t, "1")
	err := newBootstrapper(prefix).InstallPackages(context.Background(), []string{"typescript"}, 1)
	if err == nil || !strings.Contains(err.Error(), "typescript") {
		t.Fatalf("error = %v, want failure naming the package", err)
	}
}

func TestInstallPackagesEmpty(t *testing.T) {
	if err := newBootstrapper(t.TempDir()).InstallPackages(context.Background(), nil, 1); err != nil {
		t.Fatalf("InstallPackages(nil) returned error: %v", err)
	}
}

func TestReadRequirements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.txt")
	content := `# dev tooling
typescript

eslint@8.50.0
  prettier
`
	os.WriteFile(path, []byte(content), 0o644)

	got, err := ReadRequirements(path)
	if err != nil {
		t.Fatalf("ReadRequirements returned error: %v", err)
	}
	want := []string{"typescript", "eslint@8.50.0", "prettier"}
	if len(got) != len(want) {
		t.Fatalf("packages = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("package %d = %q, want %q", i, got[i], want[i])
		}
	}
}
