package formula

import (
	"context"
	"fmt"
	"os"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/usedatabrew/keg/internal/platform"
)

// Lua schema field names and globals
const (
	luaGlobalFormula   = "formula"
	luaFieldName       = "name"
	luaFieldDesc       = "description"
	luaFieldHomepage   = "homepage"
	luaFieldVersion    = "version"
	luaFieldPlatforms  = "platforms"
	luaFieldFallbacks  = "fallbacks"
	luaFieldURL        = "url"
	luaFieldSHA256     = "sha256"
	luaFieldSignature  = "signature_url"
	luaFieldInstall    = "install"
	luaFieldCaveat     = "caveat"
	luaFieldUse        = "use"
	luaFieldSource     = "source"
	luaFieldTarget     = "target"
	maxFormulaFileSize = 1 << 20
)

// Parser evaluates Lua formulas in a sandboxed VM.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a formula parser. When detector is non-nil, the detected
// platform is exposed to formulas as the read-only global "platform".
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseFile reads and parses a Lua formula file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Release, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat formula: %w", err)
	}
	if info.Size() > maxFormulaFileSize {
		return nil, fmt.Errorf("formula %s too large (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read formula: %w", err)
	}

	return p.ParseString(ctx, string(data))
}

// ParseString parses a Lua formula from a string.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Release, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("evaluate formula: %w", ctx.Err())
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	release, err := extractRelease(L)
	if err != nil {
		return nil, err
	}

	if err := release.Validate(); err != nil {
		return nil, &ParseError{
			Message: "formula validation failed",
			Detail:  err.Error(),
			Err:     err,
		}
	}

	return release, nil
}

// ParseError represents a formula parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details
	Err     error  // Underlying validation error, if any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// extractRelease reads the global "formula" table.
func extractRelease(L *lua.LState) (*Release, error) {
	formulaVal := L.GetGlobal(luaGlobalFormula)
	table, ok := formulaVal.(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'formula' table",
			Detail:  fmt.Sprintf("expected table, got %s", formulaVal.Type()),
		}
	}

	release := &Release{
		Platforms: make(map[Key]Artifact),
		Fallbacks: make(map[Key]Fallback),
	}

	var err error
	if release.Name, err = stringField(table, luaFieldName, ""); err != nil {
		return nil, err
	}
	if release.Description, err = stringField(table, luaFieldDesc, ""); err != nil {
		return nil, err
	}
	if release.Homepage, err = stringField(table, luaFieldHomepage, ""); err != nil {
		return nil, err
	}
	if release.Version, err = versionField(table); err != nil {
		return nil, err
	}

	if platformsVal := table.RawGetString(luaFieldPlatforms); platformsVal != lua.LNil {
		platforms, ok := platformsVal.(*lua.LTable)
		if !ok {
			return nil, fieldTypeError(luaFieldPlatforms, "table", platformsVal)
		}
		if err := extractPlatforms(platforms, release); err != nil {
			return nil, err
		}
	}

	if fallbacksVal := table.RawGetString(luaFieldFallbacks); fallbacksVal != lua.LNil {
		fallbacks, ok := fallbacksVal.(*lua.LTable)
		if !ok {
			return nil, fieldTypeError(luaFieldFallbacks, "table", fallbacksVal)
		}
		if err := extractFallbacks(fallbacks, release); err != nil {
			return nil, err
		}
	}

	return release, nil
}

// versionField accepts the version as a string or a number (version = 2).
func versionField(table *lua.LTable) (string, error) {
	switch v := table.RawGetString(luaFieldVersion).(type) {
	case lua.LString:
		return string(v), nil
	case lua.LNumber:
		return v.String(), nil
	case *lua.LNilType:
		return "", nil
	default:
		return "", fieldTypeError(luaFieldVersion, "string", v)
	}
}

// extractPlatforms reads platforms = { ["os/arch"] = { ... } }.
// Entries that evaluate to nil (platform.when(false, ...)) are absent.
func extractPlatforms(table *lua.LTable, release *Release) error {
	var firstErr error
	table.ForEach(func(k, v lua.LValue) {
		if firstErr != nil {
			return
		}
		key, err := luaKey(luaFieldPlatforms, k)
		if err != nil {
			firstErr = err
			return
		}
		field := luaFieldPlatforms + "." + key.String()
		entry, ok := v.(*lua.LTable)
		if !ok {
			firstErr = fieldTypeError(field, "table", v)
			return
		}
		if _, dup := release.Platforms[key]; dup {
			firstErr = &ParseError{Message: "duplicate platform", Detail: field}
			return
		}
		artifact, err := extractArtifact(entry, field)
		if err != nil {
			firstErr = err
			return
		}
		release.Platforms[key] = artifact
	})
	return firstErr
}

func extractArtifact(table *lua.LTable, field string) (Artifact, error) {
	var (
		a   Artifact
		err error
	)
	if a.URL, err = stringField(table, luaFieldURL, field+"."); err != nil {
		return a, err
	}
	if a.SHA256, err = stringField(table, luaFieldSHA256, field+"."); err != nil {
		return a, err
	}
	a.SHA256 = strings.ToLower(a.SHA256)
	if a.SignatureURL, err = stringField(table, luaFieldSignature, field+"."); err != nil {
		return a, err
	}
	if a.Caveat, err = stringField(table, luaFieldCaveat, field+"."); err != nil {
		return a, err
	}
	a.Caveat = strings.TrimSpace(a.Caveat)

	switch install := table.RawGetString(luaFieldInstall).(type) {
	case *lua.LNilType:
	case lua.LString:
		a.Install = []InstallStep{Bin(string(install))}
	case *lua.LTable:
		if a.Install, err = extractInstallSteps(install, field+"."+luaFieldInstall); err != nil {
			return a, err
		}
	default:
		return a, fieldTypeError(field+"."+luaFieldInstall, "table", install)
	}

	return a, nil
}

// extractInstallSteps reads install = { "blink", { source = "bin/x", target = "x" } }.
// Array order is preserved; nil holes are skipped.
func extractInstallSteps(table *lua.LTable, field string) ([]InstallStep, error) {
	var steps []InstallStep
	for i := 1; i <= table.MaxN(); i++ {
		elemField := fmt.Sprintf("%s[%d]", field, i)
		switch v := table.RawGetInt(i).(type) {
		case *lua.LNilType:
			continue
		case lua.LString:
			steps = append(steps, Bin(string(v)))
		case *lua.LTable:
			source, err := stringField(v, luaFieldSource, elemField+".")
			if err != nil {
				return nil, err
			}
			target, err := stringField(v, luaFieldTarget, elemField+".")
			if err != nil {
				return nil, err
			}
			if target == "" {
				target = lastSegment(source)
			}
			steps = append(steps, InstallStep{Source: source, Target: target})
		default:
			return nil, fieldTypeError(elemField, "string or table", v)
		}
	}
	return steps, nil
}

// extractFallbacks reads fallbacks = { ["darwin/arm64"] = { use = "darwin/amd64", caveat = "..." } }.
func extractFallbacks(table *lua.LTable, release *Release) error {
	var firstErr error
	table.ForEach(func(k, v lua.LValue) {
		if firstErr != nil {
			return
		}
		key, err := luaKey(luaFieldFallbacks, k)
		if err != nil {
			firstErr = err
			return
		}
		field := luaFieldFallbacks + "." + key.String()

		var fb Fallback
		switch entry := v.(type) {
		case lua.LString:
			// shorthand: ["darwin/arm64"] = "darwin/amd64"
			if fb.Use, err = ParseKey(string(entry)); err != nil {
				firstErr = &ParseError{Message: "invalid fallback platform", Detail: field + ": " + err.Error()}
				return
			}
		case *lua.LTable:
			use, err := stringField(entry, luaFieldUse, field+".")
			if err != nil {
				firstErr = err
				return
			}
			if fb.Use, err = ParseKey(use); err != nil {
				firstErr = &ParseError{Message: "invalid fallback platform", Detail: field + ".use: " + err.Error()}
				return
			}
			caveat, err := stringField(entry, luaFieldCaveat, field+".")
			if err != nil {
				firstErr = err
				return
			}
			fb.Caveat = strings.TrimSpace(caveat)
		default:
			firstErr = fieldTypeError(field, "table", v)
			return
		}

		if fb.Caveat == "" {
			fb.Caveat = DefaultCaveat(release.Name, key, fb.Use)
		}
		release.Fallbacks[key] = fb
	})
	return firstErr
}

func luaKey(section string, k lua.LValue) (Key, error) {
	s, ok := k.(lua.LString)
	if !ok {
		return Key{}, &ParseError{
			Message: "invalid platform key",
			Detail:  fmt.Sprintf("%s keys must be \"os/arch\" strings, got %s", section, k.Type()),
		}
	}
	key, err := ParseKey(string(s))
	if err != nil {
		return Key{}, &ParseError{Message: "invalid platform key", Detail: section + ": " + err.Error()}
	}
	return key, nil
}

// stringField returns a string field, "" when absent, and a ParseError when
// the field has another type.
func stringField(table *lua.LTable, name, prefix string) (string, error) {
	switch v := table.RawGetString(name).(type) {
	case lua.LString:
		return string(v), nil
	case *lua.LNilType:
		return "", nil
	default:
		return "", fieldTypeError(prefix+name, "string", v)
	}
}

func fieldTypeError(field, want string, got lua.LValue) error {
	return &ParseError{
		Message: "invalid field type",
		Detail:  fmt.Sprintf("%s: expected %s, got %s", field, want, got.Type()),
	}
}

func lastSegment(p string) string {
	return p[strings.LastIndex(p, "/")+1:]
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	if parseErr, ok := err.(*ParseError); ok {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
