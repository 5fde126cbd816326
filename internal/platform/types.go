// Package platform detects the host operating system and CPU architecture
// that keg resolves formulas against.
//
// OS and architecture come from the Go runtime and are normalized to the
// names used in formula platform keys ("darwin/amd64", "linux/arm64").
// On Linux, gopsutil supplies distribution details; detection failures there
// are non-fatal. The detected information can be injected into a Lua state as
// a read-only "platform" table so formula descriptors can branch on the host.
package platform

import "context"

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // normalized GOARCH: "amd64", "arm64", "386", "arm", or e.g. "riscv64" as-is
	ArchRaw  string // original GOARCH or uname value (e.g., "x86_64", "aarch64")
	Platform string // distro ID (Linux only, e.g., "ubuntu", "arch")
	Family   string // distro family as reported by the host (Linux only)
	Version  string // distro version (Linux only, e.g., "22.04")
}

// Distro contains Linux distribution information.
// This is nil on non-Linux platforms.
type Distro struct {
	ID      string
	Family  string
	Version string
}

// GetDistro returns distro information if this is a Linux platform.
// Returns nil for non-Linux platforms or if distro detection failed.
func (i *Info) GetDistro() *Distro {
	if i.OS != "linux" || i.Platform == "" {
		return nil
	}
	return &Distro{
		ID:      i.Platform,
		Family:  i.Family,
		Version: i.Version,
	}
}

// String returns the "os/arch" form used as a formula platform key.
func (i *Info) String() string {
	return i.OS + "/" + i.Arch
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// IsIntel returns true for x86 CPUs (amd64 and 386).
func (i *Info) IsIntel() bool {
	return i.Arch == "amd64" || i.Arch == "386"
}

// IsARM returns true for ARM CPUs (arm64 and 32-bit arm).
func (i *Info) IsARM() bool {
	return i.Arch == "arm64" || i.Arch == "arm"
}

// IsAppleSilicon returns true if running on Apple Silicon (macOS + arm64).
func (i *Info) IsAppleSilicon() bool {
	return i.OS == "darwin" && i.Arch == "arm64"
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// Static is a Detector that always reports the same platform.
// It backs the --platform override and tests.
type Static struct {
	Info *Info
}

// Detect returns the configured platform.
func (s Static) Detect(ctx context.Context) (*Info, error) {
	return s.Info, nil
}
