package formula

import (
	"fmt"
	"strings"
)

// NotSupportedError is returned when a release has neither an artifact nor a
// fallback for the requested platform.
type NotSupportedError struct {
	Formula   string
	Version   string
	Platform  Key
	Available []Key
}

func (e *NotSupportedError) Error() string {
	available := make([]string, 0, len(e.Available))
	for _, k := range e.Available {
		available = append(available, k.String())
	}
	msg := fmt.Sprintf("%s %s is not supported on %s", e.Formula, e.Version, e.Platform)
	if len(available) > 0 {
		msg += " (available: " + strings.Join(available, ", ") + ")"
	}
	return msg
}

// Resolve selects the artifact of release for the given platform.
//
// An exact platform match wins. Otherwise a documented fallback is used and
// the returned artifact carries the fallback's caveat. Without either,
// Resolve fails with *NotSupportedError.
func Resolve(release *Release, goos, arch string) (*Resolution, error) {
	if release == nil {
		return nil, fmt.Errorf("release is required")
	}

	key := Key{OS: goos, Arch: arch}

	if artifact, ok := release.Platforms[key]; ok {
		return &Resolution{
			Release:   release,
			Requested: key,
			Selected:  key,
			Artifact:  artifact,
		}, nil
	}

	if fallback, ok := release.Fallbacks[key]; ok {
		if artifact, ok := release.Platforms[fallback.Use]; ok {
			caveat := fallback.Caveat
			if caveat == "" {
				caveat = DefaultCaveat(release.Name, key, fallback.Use)
			}
			artifact.Caveat = caveat
			return &Resolution{
				Release:   release,
				Requested: key,
				Selected:  fallback.Use,
				Artifact:  artifact,
			}, nil
		}
	}

	return nil, &NotSupportedError{
		Formula:   release.Name,
		Version:   release.Version,
		Platform:  key,
		Available: release.Keys(),
	}
}

// ResolveKey is Resolve for a parsed platform key.
func ResolveKey(release *Release, key Key) (*Resolution, error) {
	return Resolve(release, key.OS, key.Arch)
}
