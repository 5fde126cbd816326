package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// distroLookup returns the distribution ID, family and version of the host.
type distroLookup func(ctx context.Context) (id, family, version string, err error)

// RealDetector reports the platform keg itself runs on.
type RealDetector struct {
	goos   string
	goarch string
	distro distroLookup
}

// NewDetector returns a detector for the running host.
func NewDetector() Detector {
	return &RealDetector{
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
		distro: host.PlatformInformationWithContext,
	}
}

// Detect normalizes the runtime OS and architecture into a formula key.
// Hosts keg has no alias for (riscv64, freebsd) are reported as-is so
// resolution can name them in a NotSupportedError.
//
// On Linux the distribution comes from gopsutil. A failed lookup only
// leaves the distro fields empty: formulas key on os/arch.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("platform detection cancelled: %w", err)
	}

	goos, err := NormalizeOS(d.goos)
	if err != nil {
		return nil, fmt.Errorf("detect os: %w", err)
	}
	arch, err := NormalizeArch(d.goarch)
	if err != nil {
		return nil, fmt.Errorf("detect arch: %w", err)
	}
	info := &Info{OS: goos, Arch: arch, ArchRaw: d.goarch}

	if goos != "linux" || d.distro == nil {
		return info, nil
	}

	id, family, version, err := d.distro(ctx)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
	}
	if err != nil {
		return info, nil
	}
	if id = normalizePlatform(id); id != "" {
		info.Platform = id
		info.Family = normalizePlatform(family)
		info.Version = normalizePlatform(version)
	}
	return info, nil
}
