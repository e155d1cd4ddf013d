package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nodevenv/nodevenv/pkg/archive"
	"github.com/nodevenv/nodevenv/pkg/builder"
	"github.com/nodevenv/nodevenv/pkg/catalog"
	"github.com/nodevenv/nodevenv/pkg/fetch"
	"github.com/nodevenv/nodevenv/pkg/npm"
	"github.com/nodevenv/nodevenv/pkg/shell"
)

func TestExitCode(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"generic failure":  {err: errors.New("boom"), want: exitFailure},
		"usage":            {err: usageError{errors.New("bad flag")}, want: exitUsage},
		"version missing":  {err: fmt.Errorf("no release matches %q: %w", "99", catalog.ErrVersionNotFound), want: exitResolve},
		"catalog down":     {err: &catalog.CatalogError{Err: errors.New("503")}, want: exitResolve},
		"download":         {err: &fetch.DownloadError{Name: "node.tar.gz"}, want: exitDownload},
		"checksum":         {err: &fetch.ChecksumError{Path: "/tmp/x", Want: "aa", Got: "bb"}, want: exitDownload},
		"extraction":       {err: &archive.ExtractionError{Archive: "x.tar.gz", Err: errors.New("short read")}, want: exitExtract},
		"build":            {err: &builder.BuildError{Stage: "make", ExitCode: 2}, want: exitBuild},
		"npm setup":        {err: &npm.SetupError{Err: errors.New("no npm")}, want: exitNPM},
		"materialize":      {err: &shell.MaterializeError{Path: "/env/bin/activate", Err: errors.New("denied")}, want: exitMaterialize},
		"wrapped download": {err: fmt.Errorf("installing runtime: %w", &fetch.DownloadError{Name: "node.tar.gz"}), want: exitDownload},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
