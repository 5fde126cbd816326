package formula

import (
	"fmt"
	"strings"
)

// ClassName converts a formula name to the CamelCase class name Homebrew
// derives from it ("databrew-blink" -> "DatabrewBlink").
func ClassName(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case r == '-' || r == '_' || r == '.' || r == '@':
			upper = true
		case upper:
			sb.WriteString(strings.ToUpper(string(r)))
			upper = false
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// DefaultCaveat is the message shown when platform from runs the binary built
// for platform to.
func DefaultCaveat(name string, from, to Key) string {
	return fmt.Sprintf(
		"The %s_%s architecture is not supported for the %s\n"+
			"formula at this time. The %s_%s binary may work in compatibility\n"+
			"mode, but it might not be fully supported.",
		from.OS, from.Arch, ClassName(name), to.OS, to.Arch)
}
