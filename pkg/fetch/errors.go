package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusError reports a non-success HTTP response from a mirror.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// MirrorFailure records why one mirror could not serve an artifact.
type MirrorFailure struct {
	Mirror string
	Err    error
}

// DownloadError reports that every configured mirror failed, carrying
// one cause per mirror in priority order.
type DownloadError struct {
	Name     string
	Failures []MirrorFailure
}

func (e *DownloadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "downloading %s failed on all %d mirror(s)", e.Name, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.Mirror, f.Err)
	}
	return b.String()
}

// NotFound reports whether every mirror answered 404, meaning the
// document does not exist upstream. A transport failure or server error
// on any mirror makes this false; absence can only be concluded when
// all mirrors were actually reached.
func (e *DownloadError) NotFound() bool {
	if len(e.Failures) == 0 {
		return false
	}
	for _, f := range e.Failures {
		var statusErr *StatusError
		if !errors.As(f.Err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
			return false
		}
	}
	return true
}

// ChecksumError reports a digest mismatch between a downloaded file and
// its descriptor.
type ChecksumError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: got %s, want %s", e.Path, e.Got, e.Want)
}
