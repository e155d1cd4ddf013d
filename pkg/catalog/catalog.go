package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Release is one entry in the upstream release index, newest first.
type Release struct {
	Version string   `json:"version"`
	Date    string   `json:"date"`
	Files   []string `json:"files"`
	LTS     LTSName  `json:"lts"`
}

// LTSName is the LTS codename of a release ("Hydrogen"), or empty for
// non-LTS releases. The upstream index encodes non-LTS as JSON false.
type LTSName string

func (l *LTSName) UnmarshalJSON(data []byte) error {
	if string(data) == "false" {
		*l = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing lts field: %w", err)
	}
	*l = LTSName(s)
	return nil
}

func (l LTSName) IsLTS() bool { return l != "" }

// SemVer returns the release version without the leading "v".
func (r Release) SemVer() string {
	return strings.TrimPrefix(r.Version, "v")
}

// HasFile reports whether the release ships the given file token
// (e.g. "linux-x64", "src").
func (r Release) HasFile(token string) bool {
	for _, f := range r.Files {
		if f == token {
			return true
		}
	}
	return false
}

// ParseIndex decodes the upstream index.json document.
func ParseIndex(data []byte) ([]Release, error) {
	var releases []Release
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, &CatalogError{Err: fmt.Errorf("parsing release index: %w", err)}
	}
	return releases, nil
}

// Kind distinguishes prebuilt binary artifacts from source archives.
type Kind string

const (
	KindBinary Kind = "binary"
	KindSource Kind = "source"
)

// ArtifactDescriptor identifies one downloadable archive for a resolved
// version. URLPath is relative to a mirror base URL. Checksum is the hex
// SHA-256 from the release's checksum manifest, empty when unknown.
type ArtifactDescriptor struct {
	Kind     Kind
	Version  string // without leading "v"
	Platform string // file token, e.g. "linux-x64"; "src" for source
	Name     string // archive file name
	URLPath  string
	Checksum string
	Size     int64
}

// ResolvedVersion is the immutable result of resolving a version spec
// against a catalog snapshot for one platform.
type ResolvedVersion struct {
	Version   string
	LTS       LTSName
	Artifacts []ArtifactDescriptor
}

// Binary returns the prebuilt artifact descriptor for the platform the
// version was resolved against, if one exists.
func (rv *ResolvedVersion) Binary() (ArtifactDescriptor, bool) {
	return rv.byKind(KindBinary)
}

// Source returns the source archive descriptor, if one exists.
func (rv *ResolvedVersion) Source() (ArtifactDescriptor, bool) {
	return rv.byKind(KindSource)
}

func (rv *ResolvedVersion) byKind(k Kind) (ArtifactDescriptor, bool) {
	for _, a := range rv.Artifacts {
		if a.Kind == k {
			return a, true
		}
	}
	return ArtifactDescriptor{}, false
}

// ParseChecksums parses a SHASUMS256.txt document into a map of file
// name to hex digest.
func ParseChecksums(data []byte) map[string]string {
	sums := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		name := strings.TrimPrefix(fields[1], "*")
		sums[name] = fields[0]
	}
	return sums
}
