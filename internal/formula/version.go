package formula

import (
	"strconv"
	"strings"
)

// CompareVersions compares two dotted version strings, ignoring a leading
// "v" and any "+build" suffix. Numeric segments compare numerically, others
// lexically. A pre-release ("1.0.0-rc1") sorts below its release. It
// returns -1, 0 or +1.
func CompareVersions(a, b string) int {
	ar, apre := splitVersion(a)
	br, bpre := splitVersion(b)
	if c := compareDotted(ar, br); c != 0 {
		return c
	}

	switch {
	case apre == bpre:
		return 0
	case apre == "":
		return 1
	case bpre == "":
		return -1
	}
	return compareDotted(apre, bpre)
}

// splitVersion splits "v1.2.3-rc.1+abc" into "1.2.3" and "rc.1".
func splitVersion(v string) (release, prerelease string) {
	v = strings.TrimPrefix(v, "v")
	v, _, _ = strings.Cut(v, "+")
	release, prerelease, _ = strings.Cut(v, "-")
	return release, prerelease
}

func compareDotted(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	for i := 0; i < len(as) || i < len(bs); i++ {
		var x, y string
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		if c := compareSegment(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(x, y string) int {
	xn, xerr := strconv.Atoi(x)
	yn, yerr := strconv.Atoi(y)
	switch {
	case x == y:
		return 0
	case x == "":
		// "1.2" < "1.2.1"
		return -1
	case y == "":
		return 1
	case xerr == nil && yerr == nil:
		if xn < yn {
			return -1
		}
		if xn > yn {
			return 1
		}
		return 0
	case x < y:
		return -1
	default:
		return 1
	}
}

// Supersedes reports whether next is a strictly newer release of the same
// package as prev. Published releases are never edited; a change always
// produces a new release with a higher version.
func Supersedes(next, prev *Release) bool {
	if next == nil || prev == nil || next.Name != prev.Name {
		return false
	}
	return CompareVersions(next.Version, prev.Version) > 0
}
