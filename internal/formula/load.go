package formula

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/usedatabrew/keg/internal/platform"
)

// Loader reads formulas from disk in any supported format.
type Loader struct {
	parser *Parser
}

// NewLoader creates a loader that evaluates Lua formulas with parser. A nil
// parser evaluates them against the host platform.
func NewLoader(parser *Parser) *Loader {
	if parser == nil {
		parser = NewParser(platform.NewDetector())
	}
	return &Loader{parser: parser}
}

// IsFormulaFile reports whether path has a formula file extension.
func IsFormulaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadFile loads a formula from a .lua, .yaml or .yml file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Release, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lua":
		return l.parser.ParseFile(ctx, path)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read formula: %w", err)
		}
		return DecodeYAML(data)
	default:
		return nil, fmt.Errorf("unsupported formula format: %s", path)
	}
}
