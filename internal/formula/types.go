// Package formula defines keg's formula descriptors and resolves them against
// the running platform.
//
// A formula describes one immutable release of a prebuilt binary: its name,
// description, homepage and version, and for every supported (os, arch) pair
// the tarball URL, its SHA-256 checksum and the files to copy into the bin
// directory. Platforms that can run another platform's binary under emulation
// are listed as fallbacks with a caveat shown to the user.
//
// Formulas are written either as sandboxed Lua (see Parser) or as YAML (see
// DecodeYAML). Both decode into a Release, which is validated before use.
package formula

import (
	"fmt"
	"sort"
	"strings"

	"github.com/usedatabrew/keg/internal/platform"
)

// Key identifies a concrete platform, e.g. darwin/arm64.
type Key struct {
	OS   string
	Arch string
}

// String returns the "os/arch" form of the key.
func (k Key) String() string {
	return k.OS + "/" + k.Arch
}

// ParseKey parses and normalizes an "os/arch" string.
func ParseKey(s string) (Key, error) {
	info, err := platform.Parse(s)
	if err != nil {
		return Key{}, err
	}
	return Key{OS: info.OS, Arch: info.Arch}, nil
}

// KeyFor returns the formula key of a detected platform.
func KeyFor(info *platform.Info) Key {
	return Key{OS: info.OS, Arch: info.Arch}
}

// Release is the descriptor of one published version of a package.
type Release struct {
	Name        string
	Description string
	Homepage    string
	Version     string

	// Platforms maps each natively supported platform to its artifact.
	Platforms map[Key]Artifact

	// Fallbacks maps platforms without a native artifact to the platform
	// whose artifact they can run.
	Fallbacks map[Key]Fallback
}

// ID returns the "name@version" identity of the release.
func (r *Release) ID() string {
	return r.Name + "@" + r.Version
}

// Keys returns the natively supported platforms in sorted order.
func (r *Release) Keys() []Key {
	return sortedKeys(r.Platforms)
}

// FallbackKeys returns the platforms served through a fallback, in sorted order.
func (r *Release) FallbackKeys() []Key {
	return sortedKeys(r.Fallbacks)
}

func sortedKeys[V any](m map[Key]V) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Artifact is the downloadable tarball for one platform of one release.
type Artifact struct {
	// URL is the https location of the tarball.
	URL string
	// SHA256 is the hex-encoded digest of the tarball.
	SHA256 string
	// SignatureURL optionally points at a detached OpenPGP signature.
	SignatureURL string
	// Install lists the archive members to copy into the bin directory, in order.
	Install []InstallStep
	// Caveat is advisory text shown after install.
	Caveat string
}

// Filename returns the last path segment of the artifact URL.
func (a Artifact) Filename() string {
	u := a.URL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return u[strings.LastIndex(u, "/")+1:]
}

// Binaries returns the install targets in order.
func (a Artifact) Binaries() []string {
	names := make([]string, 0, len(a.Install))
	for _, step := range a.Install {
		names = append(names, step.Target)
	}
	return names
}

// InstallStep copies the archive member Source into the bin directory as Target.
type InstallStep struct {
	Source string
	Target string
}

// Bin returns the step for the common case where the archive member and the
// installed file share a name.
func Bin(name string) InstallStep {
	return InstallStep{Source: name, Target: name}
}

// Fallback substitutes another platform's artifact for an unsupported one.
type Fallback struct {
	Use    Key
	Caveat string
}

// Resolution is the outcome of resolving a release for a platform.
type Resolution struct {
	Release   *Release
	Requested Key
	Selected  Key
	Artifact  Artifact
}

// IsFallback reports whether the artifact belongs to a different platform
// than the one requested.
func (r *Resolution) IsFallback() bool {
	return r.Requested != r.Selected
}

// String describes the resolution for logs.
func (r *Resolution) String() string {
	if r.IsFallback() {
		return fmt.Sprintf("%s for %s (via %s)", r.Release.ID(), r.Requested, r.Selected)
	}
	return fmt.Sprintf("%s for %s", r.Release.ID(), r.Requested)
}
