package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/nodevenv/nodevenv/pkg/fetch"
)

const (
	indexPath     = "index.json"
	checksumsFile = "SHASUMS256.txt"
)

// Client fetches the release catalog and resolves version specs against
// it. Mirrors are tried in priority order with the fetcher's retry
// policy; the parsed catalog is held only for the lifetime of the
// Client (one pipeline run).
type Client struct {
	Mirrors []string
	HTTP    *fetch.Client
	Log     *log.Logger

	releases []Release
}

// Releases returns the parsed catalog, fetching it on first use.
func (c *Client) Releases(ctx context.Context) ([]Release, error) {
	if c.releases != nil {
		return c.releases, nil
	}
	data, err := c.HTTP.GetBytes(ctx, c.Mirrors, indexPath)
	if err != nil {
		return nil, &CatalogError{Err: err}
	}
	releases, err := ParseIndex(data)
	if err != nil {
		return nil, err
	}
	c.releases = releases
	return releases, nil
}

// Resolve fetches the catalog if needed, resolves spec for the
// platform, and fills in artifact checksums from the release's checksum
// manifest. Older releases predate checksum manifests; their
// descriptors keep an empty checksum and verification is skipped.
func (c *Client) Resolve(ctx context.Context, spec string, platform Platform) (*ResolvedVersion, error) {
	releases, err := c.Releases(ctx)
	if err != nil {
		return nil, err
	}

	rv, err := Resolve(spec, platform, releases)
	if err != nil {
		return nil, err
	}

	sumsPath := fmt.Sprintf("v%s/%s", rv.Version, checksumsFile)
	data, err := c.HTTP.GetBytes(ctx, c.Mirrors, sumsPath)
	if err != nil {
		// Only a confirmed 404 from every mirror means the release
		// predates checksum manifests; anything else must not silently
		// disable verification.
		var derr *fetch.DownloadError
		if errors.As(err, &derr) && derr.NotFound() {
			c.Log.Warn("release has no checksum manifest, downloads will not be verified",
				"version", rv.Version)
			return rv, nil
		}
		return nil, fmt.Errorf("fetching checksum manifest for v%s: %w", rv.Version, err)
	}

	sums := ParseChecksums(data)
	for i := range rv.Artifacts {
		rv.Artifacts[i].Checksum = sums[rv.Artifacts[i].Name]
	}
	return rv, nil
}
