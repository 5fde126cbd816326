package platform

import (
	"fmt"
	"regexp"
	"strings"
)

// archAliases maps architecture spellings seen in the wild (uname, release
// asset names) to GOARCH names.
var archAliases = map[string]string{
	"amd64":   "amd64",
	"x86_64":  "amd64",
	"x64":     "amd64",
	"arm64":   "arm64",
	"aarch64": "arm64",
	"386":     "386",
	"i386":    "386",
	"i686":    "386",
	"x86":     "386",
	"arm":     "arm",
	"armv6":   "arm",
	"armv7":   "arm",
	"armv7l":  "arm",
}

// osAliases maps OS spellings to GOOS names.
var osAliases = map[string]string{
	"linux":   "linux",
	"darwin":  "darwin",
	"macos":   "darwin",
	"osx":     "darwin",
	"windows": "windows",
}

// validName matches GOOS/GOARCH-style names. Names outside the alias tables
// pass through unchanged, so a formula lookup can report them as unsupported.
var validName = regexp.MustCompile(`^[a-z0-9]+$`)

// NormalizeArch converts an architecture name to its GOARCH form. Unknown
// names such as riscv64 are returned lowercased.
func NormalizeArch(arch string) (string, error) {
	return normalize(arch, archAliases, "architecture")
}

// NormalizeOS converts an operating system name to its GOOS form. Unknown
// names such as freebsd are returned lowercased.
func NormalizeOS(goos string) (string, error) {
	return normalize(goos, osAliases, "operating system")
}

func normalize(name string, aliases map[string]string, kind string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[n]; ok {
		return canonical, nil
	}
	if !validName.MatchString(n) {
		return "", fmt.Errorf("invalid %s name %q", kind, name)
	}
	return n, nil
}

// Parse builds an Info from an "os/arch" string such as "darwin/arm64".
// Both halves are normalized.
func Parse(s string) (*Info, error) {
	osPart, archPart, ok := strings.Cut(s, "/")
	if !ok {
		return nil, fmt.Errorf("invalid platform %q (expected os/arch)", s)
	}

	goos, err := NormalizeOS(osPart)
	if err != nil {
		return nil, err
	}
	arch, err := NormalizeArch(archPart)
	if err != nil {
		return nil, err
	}

	return &Info{OS: goos, Arch: arch, ArchRaw: archPart}, nil
}

// normalizePlatform converts platform IDs to lowercase for consistency.
func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}
