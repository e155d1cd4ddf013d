package catalog

import (
	"fmt"
	"runtime"
)

// Platform identifies the host for artifact selection.
type Platform struct {
	OS   string // GOOS
	Arch string // GOARCH
}

// HostPlatform returns the platform of the running process.
func HostPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

var archTokens = map[string]string{
	"amd64": "x64",
	"arm64": "arm64",
	"386":   "x86",
	"arm":   "armv7l",
	"ppc64": "ppc64",
	"s390x": "s390x",
}

// FileToken returns the token the release index uses in its files list
// for this platform's prebuilt tarball, or "" when upstream publishes no
// prebuilt artifact for the platform.
func (p Platform) FileToken() string {
	arch, ok := archTokens[p.Arch]
	if !ok {
		return ""
	}
	switch p.OS {
	case "linux":
		return "linux-" + arch
	case "darwin":
		// The index lists macOS tarballs under the "osx" token.
		return fmt.Sprintf("osx-%s-tar", arch)
	case "aix":
		return "aix-" + arch
	default:
		return ""
	}
}

// archiveName returns the file name of the prebuilt tarball for a
// version, which uses the Go-style OS name even where the index token
// does not ("osx-arm64-tar" -> "node-vX-darwin-arm64.tar.gz").
func (p Platform) archiveName(version string) string {
	arch := archTokens[p.Arch]
	return fmt.Sprintf("node-v%s-%s-%s.tar.gz", version, p.OS, arch)
}

func sourceName(version string) string {
	return fmt.Sprintf("node-v%s.tar.gz", version)
}
