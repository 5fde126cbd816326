package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/usedatabrew/keg/internal/drift"
	"github.com/usedatabrew/keg/internal/formula"
	"github.com/usedatabrew/keg/internal/tap"
	"github.com/usedatabrew/keg/internal/transaction"
)

// StatusService reports drift between the tap, install receipts and disk.
type StatusService struct {
	stateDir string
	tapDir   string
	loader   *formula.Loader
	logger   *slog.Logger
}

// NewStatusService creates a new status service.
func NewStatusService(stateDir, tapDir string, loader *formula.Loader, logger *slog.Logger) *StatusService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &StatusService{stateDir: stateDir, tapDir: tapDir, loader: loader, logger: logger}
}

// Execute returns one result per installed formula, followed by one per
// incomplete install journal. A missing tap makes every formula NotInTap.
func (s *StatusService) Execute(ctx context.Context) ([]drift.DriftResult, error) {
	receipts, err := transaction.ListReceipts(s.stateDir)
	if err != nil {
		return nil, err
	}

	installed := make([]drift.Installed, 0, len(receipts))
	for _, r := range receipts {
		installed = append(installed, drift.Installed{Name: r.Formula, Version: r.FormulaVersion, Files: r.Files})
	}

	published, err := s.publishedVersions(ctx, installed)
	if err != nil {
		return nil, err
	}
	results := drift.DetectDrift(installed, published, nil)

	journals, err := transaction.ListJournals(s.stateDir)
	if err != nil {
		return nil, err
	}
	for _, txn := range journals {
		results = append(results, drift.Incomplete(txn.Formula, txn.FormulaVersion, txn.LastError))
	}
	return results, nil
}

func (s *StatusService) publishedVersions(ctx context.Context, installed []drift.Installed) (map[string]string, error) {
	published := make(map[string]string)
	if len(installed) == 0 {
		return published, nil
	}

	t, err := tap.Open(ctx, s.tapDir)
	if errors.Is(err, tap.ErrNotATap) {
		return published, nil
	}
	if err != nil {
		return nil, err
	}

	for _, inst := range installed {
		release, err := t.Load(ctx, inst.Name, s.loader)
		if errors.Is(err, tap.ErrFormulaNotFound) {
			continue
		}
		if err != nil {
			// a broken tap formula should not hide the state of the others
			s.logger.Warn("load tap formula", "formula", inst.Name, "error", err)
			continue
		}
		published[inst.Name] = release.Version
	}
	return published, nil
}
