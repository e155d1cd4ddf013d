package shell

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func newMaterializer(prefix string) *Materializer {
	return &Materializer{Prefix: prefix, Prompt: "(env)", Log: log.New(io.Discard)}
}

func TestParseDialects(t *testing.T) {
	tests := map[string]struct {
		names   []string
		want    []Dialect
		wantErr bool
	}{
		"empty defaults to bash": {names: nil, want: []Dialect{Bash}},
		"all dialects":           {names: []string{"bash", "fish", "csh", "cmd"}, want: []Dialect{Bash, Fish, Csh, Cmd}},
		"unknown dialect":        {names: []string{"powershell"}, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseDialects(tc.names)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDialects(%v) returned error: %v", tc.names, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("dialect %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestScriptContents(t *testing.T) {
	prefix := "/home/dev/env"
	for _, d := range []Dialect{Bash, Fish, Csh, Cmd} {
		t.Run(string(d), func(t *testing.T) {
			content, err := Script(prefix, "(env)", d)
			if err != nil {
				t.Fatalf("Script returned error: %v", err)
			}
			if !bytes.Contains(content, []byte(filepath.Join(prefix, "bin"))) {
				t.Errorf("%s script does not prepend the prefix bin dir", d)
			}
			if !bytes.Contains(content, []byte("NODE_VIRTUAL_ENV")) {
				t.Errorf("%s script does not export the isolation marker", d)
			}
		})
	}
}

func TestCshScriptGuardsUnsetVariables(t *testing.T) {
	// csh aborts a sourced script on substitution of an unset variable,
	// so a fresh shell must never reach "$NODE_PATH" (or any other
	// optional variable) without a $? guard first.
	content, err := Script("/home/dev/env", "(env)", Csh)
	if err != nil {
		t.Fatalf("Script returned error: %v", err)
	}
	script := string(content)

	for _, v := range []string{"NODE_PATH", "NPM_CONFIG_PREFIX", "prompt"} {
		guard := "($?" + v + ")"
		use := `"$` + v + `"`
		gi := strings.Index(script, guard)
		if gi < 0 {
			t.Errorf("no $?%s guard in csh script", v)
			continue
		}
		if ui := strings.Index(script, use); ui >= 0 && ui < gi {
			t.Errorf("%s substituted before its guard", v)
		}
	}

	for _, v := range []string{"_OLD_NODE_VIRTUAL_PATH", "_OLD_NODE_PATH", "_OLD_NPM_CONFIG_PREFIX", "_OLD_NODE_VIRTUAL_PROMPT"} {
		if !strings.Contains(script, "test $?"+v+" != 0 &&") {
			t.Errorf("deactivate alias restores %s without a guard", v)
		}
	}
}

func TestScriptIsPure(t *testing.T) {
	a, err := Script("/env", "(env)", Bash)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Script("/env", "(env)", Bash)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Script output differs between identical calls")
	}
}

func TestMaterializeIdempotent(t *testing.T) {
	prefix := t.TempDir()
	m := newMaterializer(prefix)
	dialects := []Dialect{Bash, Fish}

	if err := m.Materialize(dialects); err != nil {
		t.Fatalf("first Materialize returned error: %v", err)
	}

	first := map[string][]byte{}
	for _, d := range dialects {
		path := filepath.Join(prefix, "bin", d.ScriptName())
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("activation script missing: %v", err)
		}
		first[path] = content

		info, _ := os.Stat(path)
		if info.Mode().Perm() != 0o755 {
			t.Errorf("%s mode = %v, want 0755", path, info.Mode().Perm())
		}
	}

	if err := m.Materialize(dialects); err != nil {
		t.Fatalf("second Materialize returned error: %v", err)
	}
	for path, want := range first {
		got, _ := os.ReadFile(path)
		if !bytes.Equal(got, want) {
			t.Errorf("%s changed between identical runs", path)
		}
	}
}

// fakeVenv lays out a minimal Python virtualenv bin directory.
func fakeVenv(t *testing.T, scripts map[string]string) string {
	t.Helper()
	venv := t.TempDir()
	bin := filepath.Join(venv, "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range scripts {
		if err := os.WriteFile(filepath.Join(bin, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return venv
}

func TestSpliceAppendsManagedBlock(t *testing.T) {
	original := "# python venv activate\nexport VIRTUAL_ENV=/venv\n"
	venv := fakeVenv(t, map[string]string{"activate": original})
	m := newMaterializer("/env")

	if err := m.Splice(venv, []Dialect{Bash}); err != nil {
		t.Fatalf("Splice returned error: %v", err)
	}

	content, _ := os.ReadFile(filepath.Join(venv, "bin", "activate"))
	got := string(content)
	if !strings.HasPrefix(got, original) {
		t.Error("splice clobbered the venv's own activation logic")
	}
	if !strings.Contains(got, markerBegin) || !strings.Contains(got, markerEnd) {
		t.Error("managed block markers missing")
	}
	if !strings.Contains(got, "NODE_VIRTUAL_ENV") {
		t.Error("managed block does not export the isolation marker")
	}
}

func TestSpliceTwiceKeepsOneBlock(t *testing.T) {
	venv := fakeVenv(t, map[string]string{"activate": "# venv activate\n"})
	m := newMaterializer("/env")

	if err := m.Splice(venv, []Dialect{Bash}); err != nil {
		t.Fatal(err)
	}
	afterFirst, _ := os.ReadFile(filepath.Join(venv, "bin", "activate"))

	if err := m.Splice(venv, []Dialect{Bash}); err != nil {
		t.Fatal(err)
	}
	afterSecond, _ := os.ReadFile(filepath.Join(venv, "bin", "activate"))

	if !bytes.Equal(afterFirst, afterSecond) {
		t.Error("second splice changed the file")
	}
	if got := strings.Count(string(afterSecond), markerBegin); got != 1 {
		t.Errorf("found %d managed blocks, want 1", got)
	}
}

func TestSpliceReplacesStaleBlock(t *testing.T) {
	venv := fakeVenv(t, map[string]string{"activate": "# venv activate\n"})

	if err := newMaterializer("/old-env").Splice(venv, []Dialect{Bash}); err != nil {
		t.Fatal(err)
	}
	if err := newMaterializer("/new-env").Splice(venv, []Dialect{Bash}); err != nil {
		t.Fatal(err)
	}

	content, _ := os.ReadFile(filepath.Join(venv, "bin", "activate"))
	got := string(content)
	if strings.Contains(got, "/old-env") {
		t.Error("stale managed block survived the re-splice")
	}
	if !strings.Contains(got, "/new-env") {
		t.Error("new managed block missing")
	}
	if count := strings.Count(got, markerBegin); count != 1 {
		t.Errorf("found %d managed blocks, want 1", count)
	}
}

func TestSpliceOnlyPatchesPresentDialects(t *testing.T) {
	venv := fakeVenv(t, map[string]string{"activate": "# venv\n"})
	m := newMaterializer("/env")

	// fish script absent in the venv: bash is patched, fish skipped.
	if err := m.Splice(venv, []Dialect{Bash, Fish}); err != nil {
		t.Fatalf("Splice returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(venv, "bin", "activate.fish")); !os.IsNotExist(err) {
		t.Error("splice created an activation script the venv did not have")
	}
}

func TestSpliceNoScriptsFound(t *testing.T) {
	venv := fakeVenv(t, nil)
	err := newMaterializer("/env").Splice(venv, []Dialect{Fish})

	var matErr *MaterializeError
	if !errors.As(err, &matErr) {
		t.Fatalf("error = %v, want MaterializeError", err)
	}
}
