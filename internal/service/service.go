// Package service provides the high-level keg operations the CLI runs:
// installing and uninstalling formulas, and publishing releases to a tap.
package service

import (
	"context"
	"fmt"
	"os"

	"github.com/usedatabrew/keg/internal/formula"
	"github.com/usedatabrew/keg/internal/tap"
)

// FormulaSource loads a release by formula name.
type FormulaSource interface {
	Load(ctx context.Context, name string, loader *formula.Loader) (*formula.Release, error)
}

// TapSource opens the tap at dir on first use.
type TapSource struct {
	Dir string
}

// Load implements FormulaSource.
func (s TapSource) Load(ctx context.Context, name string, loader *formula.Loader) (*formula.Release, error) {
	if s.Dir == "" {
		return nil, fmt.Errorf("%s: no tap configured", name)
	}
	t, err := tap.Open(ctx, s.Dir)
	if err != nil {
		return nil, err
	}
	return t.Load(ctx, name, loader)
}

// LoadFormula loads ref, which is either a path to a formula file or the
// name of a formula in source.
func LoadFormula(ctx context.Context, ref string, source FormulaSource, loader *formula.Loader) (*formula.Release, error) {
	if loader == nil {
		loader = formula.NewLoader(nil)
	}
	if formula.IsFormulaFile(ref) {
		if _, err := os.Stat(ref); err == nil {
			return loader.LoadFile(ctx, ref)
		}
	}
	if source == nil {
		return nil, fmt.Errorf("%s: %w", ref, tap.ErrFormulaNotFound)
	}
	return source.Load(ctx, ref, loader)
}
