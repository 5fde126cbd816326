package formula

import (
	"fmt"
	"strings"
)

// Severity of an audit finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem reported by Audit.
type Finding struct {
	Severity Severity
	Field    string
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Severity, f.Field, f.Message)
}

// Audit runs the hard invariants of Validate plus publishing conventions:
// every artifact file name carries the release version exactly once, and
// fallback caveats are present. It never stops at the first problem.
func Audit(r *Release) []Finding {
	var findings []Finding

	if err := r.Validate(); err != nil {
		field, msg := "", err.Error()
		if ve, ok := err.(*ValidationError); ok {
			field, msg = ve.Field, ve.Message
		}
		findings = append(findings, Finding{Severity: SeverityError, Field: field, Message: msg})
	}

	for _, key := range r.Keys() {
		a := r.Platforms[key]
		field := "platforms." + key.String() + ".url"
		if r.Version == "" {
			continue
		}
		if n := strings.Count(a.Filename(), r.Version); n != 1 {
			findings = append(findings, Finding{
				Severity: SeverityError,
				Field:    field,
				Message:  fmt.Sprintf("artifact %q contains version %q %d times, want exactly once", a.Filename(), r.Version, n),
			})
		}
		if !strings.Contains(a.Filename(), key.OS) {
			findings = append(findings, Finding{
				Severity: SeverityWarning,
				Field:    field,
				Message:  fmt.Sprintf("artifact %q does not mention %s", a.Filename(), key.OS),
			})
		}
	}

	if r.Description == "" {
		findings = append(findings, Finding{Severity: SeverityWarning, Field: "description", Message: "missing description"})
	}
	if r.Homepage == "" {
		findings = append(findings, Finding{Severity: SeverityWarning, Field: "homepage", Message: "missing homepage"})
	}

	return findings
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
