// Package drift compares three sources of truth about installed formulas:
// the tap (what is published), the install receipts (what keg installed)
// and the bin directory (what is actually on disk).
package drift

// DriftType represents the type of drift detected
type DriftType int

const (
	DriftOK DriftType = iota
	// DriftOutdated: the tap publishes a newer version than the installed one.
	DriftOutdated
	// DriftAhead: the installed version is newer than anything in the tap.
	DriftAhead
	// DriftNotInTap: installed, but the tap has no such formula.
	DriftNotInTap
	// DriftMissingFiles: the receipt lists files that are gone from disk.
	DriftMissingFiles
	// DriftIncomplete: the last install attempt failed or was interrupted.
	DriftIncomplete
)

// String returns human-readable drift type name
func (d DriftType) String() string {
	switch d {
	case DriftOK:
		return "OK"
	case DriftOutdated:
		return "OUTDATED"
	case DriftAhead:
		return "AHEAD"
	case DriftNotInTap:
		return "NOT_IN_TAP"
	case DriftMissingFiles:
		return "MISSING_FILES"
	case DriftIncomplete:
		return "INCOMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Installed is a formula as recorded by its install receipt.
type Installed struct {
	Name    string
	Version string
	Files   []string
}

// DriftResult represents a single drift detection result
type DriftResult struct {
	Formula          string
	DriftType        DriftType
	InstalledVersion string
	PublishedVersion string
	// MissingFiles are receipt files absent from disk.
	MissingFiles []string
	// Error is the failure recorded by an incomplete install.
	Error string
}
