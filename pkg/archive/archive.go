// Package archive extracts the distribution tarballs (.tar.gz and
// .tar.xz) that the pipeline downloads. Extraction is in-process; the
// archive's contents are opaque beyond the directory layout.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// ExtractionError reports a corrupt or unsupported archive. It is fatal
// for the pipeline; there is no fallback format.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extract unpacks archivePath into destDir, stripping the given number
// of leading path components from every entry. Entries that would
// escape destDir are rejected. File modes and symlinks are preserved.
func Extract(archivePath, destDir string, stripComponents int) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}
	defer f.Close()

	var r io.Reader
	switch {
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return &ExtractionError{Archive: archivePath, Err: err}
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(archivePath, ".tar.xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return &ExtractionError{Archive: archivePath, Err: err}
		}
		r = xr
	default:
		return &ExtractionError{Archive: archivePath, Err: fmt.Errorf("unsupported archive format")}
	}

	if err := untar(r, destDir, stripComponents); err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}
	return nil
}

func untar(r io.Reader, destDir string, strip int) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		rel, ok := stripPath(hdr.Name, strip)
		if !ok {
			continue
		}
		target, err := securePath(destDir, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)|0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			linkRel, ok := stripPath(hdr.Linkname, strip)
			if !ok {
				continue
			}
			src, err := securePath(destDir, linkRel)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Link(src, target); err != nil {
				return err
			}
		}
	}
}

// stripPath removes the leading strip components from a tar entry name.
// Entries shallower than the strip depth are skipped.
func stripPath(name string, strip int) (string, bool) {
	clean := filepath.ToSlash(filepath.Clean(name))
	parts := strings.Split(clean, "/")
	if len(parts) <= strip {
		return "", false
	}
	return filepath.Join(parts[strip:]...), true
}

// securePath joins rel under destDir, rejecting traversal escapes.
func securePath(destDir, rel string) (string, error) {
	target := filepath.Join(destDir, rel)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
		return "", fmt.Errorf("archive entry %q escapes destination", rel)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
