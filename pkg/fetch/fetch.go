package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultMirrors is the standard upstream distribution endpoint. Callers
// override it via configuration; it is never consulted implicitly.
var DefaultMirrors = []string{"https://nodejs.org/dist"}

// Artifact names one downloadable archive. URLPath is relative to a
// mirror base URL. Checksum (hex SHA-256) and Size are verified when
// non-zero. CacheKey, when set, places the download in the local
// artifact cache under that relative path.
type Artifact struct {
	Name     string
	URLPath  string
	Checksum string
	Size     int64
	CacheKey string
}

// Client downloads artifacts from an ordered mirror list with bounded
// per-mirror retries, checksum verification, and atomic placement.
type Client struct {
	HTTP     *retryablehttp.Client
	CacheDir string // optional local artifact cache
	Log      *log.Logger
}

// NewClient returns a Client with the standard retry policy: up to
// retries attempts per request with exponential backoff on transient
// failures (connection errors and 5xx responses).
func NewClient(cacheDir string, retries int, logger *log.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = nil
	return &Client{HTTP: rc, CacheDir: cacheDir, Log: logger}
}

// Fetch downloads the artifact, trying mirrors strictly in order, and
// returns the local path of the verified file. The file lands in the
// cache dir when one is configured and the artifact has a CacheKey,
// otherwise in destDir. A cached copy is re-verified and reused without
// touching the network.
func (c *Client) Fetch(ctx context.Context, art Artifact, mirrors []string, destDir string) (string, error) {
	dest, err := c.destPath(art, destDir)
	if err != nil {
		return "", err
	}

	if path, ok := c.cachedCopy(art, dest); ok {
		c.Log.Debug("using cached artifact", "path", path)
		return path, nil
	}

	derr := &DownloadError{Name: art.Name}
	for _, mirror := range mirrors {
		url := joinURL(mirror, art.URLPath)
		c.Log.Debug("downloading", "url", url)

		if err := c.downloadVerified(ctx, url, art, dest); err != nil {
			c.Log.Debug("mirror failed", "mirror", mirror, "err", err)
			derr.Failures = append(derr.Failures, MirrorFailure{Mirror: mirror, Err: err})
			continue
		}
		return dest, nil
	}
	return "", derr
}

// GetBytes fetches a small document (index, checksum manifest) from the
// first mirror that answers, with the same retry policy as Fetch.
func (c *Client) GetBytes(ctx context.Context, mirrors []string, urlPath string) ([]byte, error) {
	derr := &DownloadError{Name: urlPath}
	for _, mirror := range mirrors {
		data, err := c.getOnce(ctx, joinURL(mirror, urlPath))
		if err != nil {
			derr.Failures = append(derr.Failures, MirrorFailure{Mirror: mirror, Err: err})
			continue
		}
		return data, nil
	}
	return nil, derr
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// destPath decides where the verified artifact will live and creates
// the parent directory.
func (c *Client) destPath(art Artifact, destDir string) (string, error) {
	dest := filepath.Join(destDir, art.Name)
	if c.CacheDir != "" && art.CacheKey != "" {
		dest = filepath.Join(c.CacheDir, art.CacheKey)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}
	return dest, nil
}

// cachedCopy reports whether dest already holds a verifiable copy of
// the artifact. A copy that fails verification is discarded.
func (c *Client) cachedCopy(art Artifact, dest string) (string, bool) {
	if _, err := os.Stat(dest); err != nil {
		return "", false
	}
	if err := verifyFile(dest, art.Checksum, art.Size); err != nil {
		c.Log.Warn("discarding corrupt cached artifact", "path", dest, "err", err)
		os.Remove(dest)
		return "", false
	}
	return dest, true
}

// downloadVerified streams one URL to a temp file next to dest,
// verifies it, and renames it into place. A partial or corrupt download
// is never visible at dest.
func (c *Client) downloadVerified(ctx context.Context, url string, art Artifact, dest string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", art.Name, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := verifyFile(tmpPath, art.Checksum, art.Size); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("moving %s into place: %w", art.Name, err)
	}
	return nil
}

// verifyFile checks size and checksum when known. An empty checksum or
// zero size skips that check.
func verifyFile(path, checksum string, size int64) error {
	if size > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() != size {
			return fmt.Errorf("size mismatch: got %d bytes, want %d", info.Size(), size)
		}
	}
	if checksum == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != checksum {
		return &ChecksumError{Path: path, Want: checksum, Got: got}
	}
	return nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
