package drift

import (
	"fmt"
	"strings"
)

// FormatDriftReport formats drift results for user display
func FormatDriftReport(results []DriftResult) string {
	var sb strings.Builder

	counts := make(map[DriftType]int)
	for _, r := range results {
		counts[r.DriftType]++
	}

	for _, r := range results {
		if r.DriftType == DriftOK {
			continue
		}
		sb.WriteString(formatDriftEntry(r))
		sb.WriteString("\n")
	}

	if ok := counts[DriftOK]; ok > 0 {
		sb.WriteString(fmt.Sprintf("[OK] ✓\n  %d formula(s) up to date\n\n", ok))
	}

	drifts := len(results) - counts[DriftOK]
	if drifts == 0 {
		sb.WriteString("SUMMARY: No drift detected ✓\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("SUMMARY: %d drift(s) detected\n", drifts))
	var parts []string
	for _, d := range []DriftType{DriftOutdated, DriftMissingFiles, DriftIncomplete, DriftNotInTap, DriftAhead} {
		if counts[d] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[d], strings.ToLower(strings.ReplaceAll(d.String(), "_", " "))))
		}
	}
	sb.WriteString("  " + strings.Join(parts, ", ") + "\n")
	return sb.String()
}

// formatDriftEntry formats a single drift entry
func formatDriftEntry(r DriftResult) string {
	var sb strings.Builder

	switch r.DriftType {
	case DriftOutdated:
		sb.WriteString("[OUTDATED]\n")
		sb.WriteString(fmt.Sprintf("  %s\n", r.Formula))
		sb.WriteString(fmt.Sprintf("    Installed: %s\n", r.InstalledVersion))
		sb.WriteString(fmt.Sprintf("    Tap:       %s\n", r.PublishedVersion))
		sb.WriteString(fmt.Sprintf("    → keg install %s\n", r.Formula))

	case DriftAhead:
		sb.WriteString("[AHEAD]\n")
		sb.WriteString(fmt.Sprintf("  %s\n", r.Formula))
		sb.WriteString(fmt.Sprintf("    Installed: %s\n", r.InstalledVersion))
		sb.WriteString(fmt.Sprintf("    Tap:       %s\n", r.PublishedVersion))
		sb.WriteString("    → installed from a formula file newer than the tap\n")

	case DriftNotInTap:
		sb.WriteString("[NOT IN TAP]\n")
		sb.WriteString(fmt.Sprintf("  %s\n", r.Formula))
		sb.WriteString(fmt.Sprintf("    Installed: %s\n", r.InstalledVersion))
		sb.WriteString("    Tap:       (not published)\n")

	case DriftMissingFiles:
		sb.WriteString("[MISSING FILES]\n")
		sb.WriteString(fmt.Sprintf("  %s\n", r.Formula))
		sb.WriteString(fmt.Sprintf("    Installed: %s\n", r.InstalledVersion))
		for _, f := range r.MissingFiles {
			sb.WriteString(fmt.Sprintf("    Missing:   %s\n", f))
		}
		sb.WriteString(fmt.Sprintf("    → keg install %s\n", r.Formula))

	case DriftIncomplete:
		sb.WriteString("[INCOMPLETE]\n")
		sb.WriteString(fmt.Sprintf("  %s\n", r.Formula))
		sb.WriteString(fmt.Sprintf("    Attempted: %s\n", r.InstalledVersion))
		if r.Error != "" {
			sb.WriteString(fmt.Sprintf("    Error:     %s\n", r.Error))
		}
	}

	return sb.String()
}
