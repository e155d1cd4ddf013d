package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrVersionNotFound reports that no release in the catalog satisfies a
// version spec.
var ErrVersionNotFound = errors.New("version not found")

// CatalogError reports that the release catalog could not be fetched or
// parsed.
type CatalogError struct {
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("release catalog unavailable: %v", e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// Resolve picks the release satisfying spec and returns its artifact
// descriptors for the platform. Specs: "latest", "lts", an exact version
// ("18.17.1", leading "v" allowed), or a semantic prefix ("18", "18.17")
// which selects the newest matching release by semver order.
//
// Resolution is deterministic for a fixed catalog snapshot and platform.
// Checksums on the returned descriptors are unset; see Client.Resolve.
func Resolve(spec string, platform Platform, releases []Release) (*ResolvedVersion, error) {
	spec = strings.TrimPrefix(strings.TrimSpace(spec), "v")

	var picked *Release
	switch {
	case spec == "" || spec == "latest":
		// Newest release that ships anything at all for the platform;
		// a source archive is enough.
		for i := range releases {
			if hasAnyArtifact(releases[i], platform) {
				picked = &releases[i]
				break
			}
		}
	case spec == "lts":
		for i := range releases {
			if releases[i].LTS.IsLTS() && hasAnyArtifact(releases[i], platform) {
				picked = &releases[i]
				break
			}
		}
	case isExact(spec):
		for i := range releases {
			if releases[i].SemVer() == spec {
				picked = &releases[i]
				break
			}
		}
	default:
		picked = newestWithPrefix(spec, releases)
	}

	if picked == nil {
		return nil, fmt.Errorf("no release matches %q: %w", spec, ErrVersionNotFound)
	}
	return descriptors(*picked, platform), nil
}

// isExact reports whether spec names one concrete version
// (major.minor.patch, optionally with a pre-release tag).
func isExact(spec string) bool {
	base := spec
	if i := strings.IndexAny(base, "-+"); i >= 0 {
		base = base[:i]
	}
	return strings.Count(base, ".") == 2
}

// newestWithPrefix returns the release with the highest semver version
// among those whose version starts with the given prefix.
func newestWithPrefix(prefix string, releases []Release) *Release {
	var best *Release
	var bestVer *semver.Version
	for i := range releases {
		v := releases[i].SemVer()
		if v != prefix && !strings.HasPrefix(v, prefix+".") {
			continue
		}
		parsed, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		if bestVer == nil || parsed.GreaterThan(bestVer) {
			best = &releases[i]
			bestVer = parsed
		}
	}
	return best
}

func hasAnyArtifact(r Release, platform Platform) bool {
	if r.HasFile("src") {
		return true
	}
	token := platform.FileToken()
	return token != "" && r.HasFile(token)
}

// descriptors builds the artifact set for a release: at most one binary
// descriptor (absent when the platform has no prebuilt tarball, which
// forces a source build) and one source descriptor.
func descriptors(r Release, platform Platform) *ResolvedVersion {
	version := r.SemVer()
	rv := &ResolvedVersion{Version: version, LTS: r.LTS}

	if token := platform.FileToken(); token != "" && r.HasFile(token) {
		name := platform.archiveName(version)
		rv.Artifacts = append(rv.Artifacts, ArtifactDescriptor{
			Kind:     KindBinary,
			Version:  version,
			Platform: token,
			Name:     name,
			URLPath:  fmt.Sprintf("v%s/%s", version, name),
		})
	}
	if r.HasFile("src") {
		name := sourceName(version)
		rv.Artifacts = append(rv.Artifacts, ArtifactDescriptor{
			Kind:     KindSource,
			Version:  version,
			Platform: "src",
			Name:     name,
			URLPath:  fmt.Sprintf("v%s/%s", version, name),
		})
	}
	return rv
}
