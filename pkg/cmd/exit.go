package cmd

import (
	"errors"

	"github.com/nodevenv/nodevenv/pkg/archive"
	"github.com/nodevenv/nodevenv/pkg/builder"
	"github.com/nodevenv/nodevenv/pkg/catalog"
	"github.com/nodevenv/nodevenv/pkg/fetch"
	"github.com/nodevenv/nodevenv/pkg/npm"
	"github.com/nodevenv/nodevenv/pkg/shell"
)

// Process exit codes, one per pipeline failure class.
const (
	exitFailure     = 1
	exitUsage       = 2
	exitResolve     = 3
	exitDownload    = 4
	exitExtract     = 5
	exitBuild       = 6
	exitNPM         = 7
	exitMaterialize = 8
)

// usageError marks bad invocations so Execute can exit with the usage
// code instead of the generic failure code.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

// exitCode maps a pipeline error to its failure-class exit code.
func exitCode(err error) int {
	var (
		usageErr    usageError
		catalogErr  *catalog.CatalogError
		downloadErr *fetch.DownloadError
		checksumErr *fetch.ChecksumError
		extractErr  *archive.ExtractionError
		buildErr    *builder.BuildError
		npmErr      *npm.SetupError
		matErr      *shell.MaterializeError
	)
	switch {
	case errors.As(err, &usageErr):
		return exitUsage
	case errors.Is(err, catalog.ErrVersionNotFound), errors.As(err, &catalogErr):
		return exitResolve
	case errors.As(err, &downloadErr), errors.As(err, &checksumErr):
		return exitDownload
	case errors.As(err, &extractErr):
		return exitExtract
	case errors.As(err, &buildErr):
		return exitBuild
	case errors.As(err, &npmErr):
		return exitNPM
	case errors.As(err, &matErr):
		return exitMaterialize
	default:
		return exitFailure
	}
}
