package formula

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	// MaxPlatforms bounds the number of platform entries in one formula.
	MaxPlatforms = 64
	// MaxInstallSteps bounds the number of install steps per artifact.
	MaxInstallSteps = 32
)

var (
	namePattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9._+-]*(@[0-9.]+)?$`)
	versionPattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z._+-]*$`)
	sha256Pattern  = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// ValidationError reports a formula field that violates an invariant.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "formula validation failed for " + e.Field + ": " + e.Message
	}
	return "formula validation failed: " + e.Message
}

// Validate checks the release against the formula invariants. It returns the
// first violation found as a *ValidationError.
func (r *Release) Validate() error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if !namePattern.MatchString(r.Name) {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("invalid formula name %q", r.Name)}
	}
	if r.Version == "" {
		return &ValidationError{Field: "version", Message: "cannot be empty"}
	}
	if !versionPattern.MatchString(r.Version) {
		return &ValidationError{Field: "version", Message: fmt.Sprintf("invalid version %q", r.Version)}
	}
	if r.Homepage != "" {
		if err := validateHTTPS(r.Homepage); err != nil {
			return &ValidationError{Field: "homepage", Message: err.Error()}
		}
	}

	if len(r.Platforms) == 0 {
		return &ValidationError{Field: "platforms", Message: "at least one platform is required"}
	}
	if len(r.Platforms)+len(r.Fallbacks) > MaxPlatforms {
		return &ValidationError{
			Field:   "platforms",
			Message: fmt.Sprintf("too many platforms (%d), maximum is %d", len(r.Platforms)+len(r.Fallbacks), MaxPlatforms),
		}
	}

	for _, key := range r.Keys() {
		if err := validateArtifact(r.Platforms[key]); err != nil {
			return &ValidationError{Field: "platforms." + key.String() + err.field, Message: err.msg}
		}
	}

	for _, key := range r.FallbackKeys() {
		fb := r.Fallbacks[key]
		field := "fallbacks." + key.String()
		if _, ok := r.Platforms[key]; ok {
			return &ValidationError{Field: field, Message: "platform already has a native artifact"}
		}
		if _, ok := r.Platforms[fb.Use]; !ok {
			return &ValidationError{Field: field + ".use", Message: fmt.Sprintf("no artifact for %s", fb.Use)}
		}
		if strings.TrimSpace(fb.Caveat) == "" {
			return &ValidationError{Field: field + ".caveat", Message: "cannot be empty"}
		}
	}

	return nil
}

type artifactError struct {
	field string
	msg   string
}

func validateArtifact(a Artifact) *artifactError {
	if err := validateHTTPS(a.URL); err != nil {
		return &artifactError{".url", err.Error()}
	}
	if !isTarball(a.Filename()) {
		return &artifactError{".url", fmt.Sprintf("%q is not a tarball (.tar.gz or .tgz)", a.Filename())}
	}
	if !sha256Pattern.MatchString(a.SHA256) {
		return &artifactError{".sha256", "must be 64 hex characters"}
	}
	if a.SignatureURL != "" {
		if err := validateHTTPS(a.SignatureURL); err != nil {
			return &artifactError{".signature_url", err.Error()}
		}
	}

	if len(a.Install) == 0 {
		return &artifactError{".install", "at least one install step is required"}
	}
	if len(a.Install) > MaxInstallSteps {
		return &artifactError{".install", fmt.Sprintf("too many install steps (%d), maximum is %d", len(a.Install), MaxInstallSteps)}
	}

	seen := make(map[string]bool, len(a.Install))
	for i, step := range a.Install {
		field := fmt.Sprintf(".install[%d]", i)
		if err := validateSource(step.Source); err != nil {
			return &artifactError{field + ".source", err.Error()}
		}
		if err := ValidateTarget(step.Target); err != nil {
			return &artifactError{field + ".target", err.Error()}
		}
		if seen[step.Target] {
			return &artifactError{field + ".target", fmt.Sprintf("duplicate target %q", step.Target)}
		}
		seen[step.Target] = true
	}

	return nil
}

// ValidateTarget checks that an install target is a bare file name, so an
// install step can never write outside the bin directory.
func ValidateTarget(target string) error {
	if target == "" {
		return fmt.Errorf("cannot be empty")
	}
	if target == "." || target == ".." {
		return fmt.Errorf("invalid target %q", target)
	}
	if strings.ContainsAny(target, `/\`) || strings.ContainsRune(target, 0) {
		return fmt.Errorf("target %q must be a file name, not a path", target)
	}
	return nil
}

// validateSource checks an archive member path: relative and without "..".
func validateSource(source string) error {
	if source == "" {
		return fmt.Errorf("cannot be empty")
	}
	if strings.HasPrefix(source, "/") || strings.Contains(source, `\`) {
		return fmt.Errorf("source %q must be a relative archive path", source)
	}
	for _, part := range strings.Split(path.Clean(source), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal not allowed: %s", source)
		}
	}
	return nil
}

func validateHTTPS(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("URL must use https:// scheme (got: %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %s", raw)
	}
	return nil
}

func isTarball(name string) bool {
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz")
}
