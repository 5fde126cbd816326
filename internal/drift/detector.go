package drift

import (
	"os"
	"sort"

	"github.com/usedatabrew/keg/internal/formula"
)

// DetectDrift compares installed formulas with the versions published in
// the tap and with the files on disk. published maps formula name to its
// tap version; exists reports whether an installed file is still present
// (nil means os.Stat). Results are sorted by formula name.
//
// Classification, first match wins:
//  1. NotInTap: the tap has no formula of that name
//  2. MissingFiles: a file from the receipt is gone
//  3. Outdated / Ahead: the versions differ
//  4. OK
func DetectDrift(installed []Installed, published map[string]string, exists func(string) bool) []DriftResult {
	if exists == nil {
		exists = fileExists
	}

	results := make([]DriftResult, 0, len(installed))
	for _, inst := range installed {
		result := DriftResult{
			Formula:          inst.Name,
			InstalledVersion: inst.Version,
		}

		for _, f := range inst.Files {
			if !exists(f) {
				result.MissingFiles = append(result.MissingFiles, f)
			}
		}

		version, inTap := published[inst.Name]
		result.PublishedVersion = version

		switch {
		case !inTap:
			result.DriftType = DriftNotInTap
		case len(result.MissingFiles) > 0:
			result.DriftType = DriftMissingFiles
		default:
			result.DriftType = classifyVersion(inst.Version, version)
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Formula < results[j].Formula
	})
	return results
}

func classifyVersion(installed, published string) DriftType {
	switch c := formula.CompareVersions(published, installed); {
	case c > 0:
		return DriftOutdated
	case c < 0:
		return DriftAhead
	default:
		return DriftOK
	}
}

// Incomplete reports installs that did not finish.
func Incomplete(name, version, lastError string) DriftResult {
	return DriftResult{
		Formula:          name,
		DriftType:        DriftIncomplete,
		InstalledVersion: version,
		Error:            lastError,
	}
}

// Outdated returns the results that a reinstall from the tap would change.
func Outdated(results []DriftResult) []DriftResult {
	var out []DriftResult
	for _, r := range results {
		if r.DriftType == DriftOutdated || r.DriftType == DriftMissingFiles {
			out = append(out, r)
		}
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
