package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/usedatabrew/keg/internal/formula"
	"github.com/usedatabrew/keg/internal/install"
	"github.com/usedatabrew/keg/internal/platform"
	"github.com/usedatabrew/keg/internal/transaction"
)

// InstallService orchestrates the install operation.
type InstallService struct {
	installer *install.Installer
	source    FormulaSource
	loader    *formula.Loader
	detector  platform.Detector
	clock     transaction.Clock
	stateDir  string
	logger    *slog.Logger
}

// NewInstallService creates a new install service with dependency injection.
func NewInstallService(
	installer *install.Installer,
	source FormulaSource,
	loader *formula.Loader,
	detector platform.Detector,
	clock transaction.Clock,
	stateDir string,
	logger *slog.Logger,
) *InstallService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &InstallService{
		installer: installer,
		source:    source,
		loader:    loader,
		detector:  detector,
		clock:     clock,
		stateDir:  stateDir,
		logger:    logger,
	}
}

// InstallRequest contains the parameters for installing a formula.
type InstallRequest struct {
	// Formula is a formula file path or a tap formula name.
	Formula string
	// Platform overrides host detection ("os/arch").
	Platform string
	BinDir   string
}

// InstallResult contains the results of the install operation.
type InstallResult struct {
	Release    *formula.Release
	Resolution *formula.Resolution
	Install    *install.Result
	Receipt    *transaction.InstallTxn
}

// Execute installs a formula. The state directory is locked for the whole
// operation, and every state change is journaled before the next step
// runs. On success the journal becomes the formula's receipt; a failed
// install leaves its journal behind.
func (s *InstallService) Execute(ctx context.Context, req InstallRequest) (*InstallResult, error) {
	if req.BinDir == "" {
		return nil, fmt.Errorf("bin directory is required")
	}

	// 1. Acquire install lock
	lock, err := transaction.AcquireLock(ctx, s.stateDir)
	if err != nil {
		return nil, fmt.Errorf("acquire install lock: %w", err)
	}
	defer func() { _ = lock.Release() }()

	// 2. Load and resolve
	release, err := LoadFormula(ctx, req.Formula, s.source, s.loader)
	if err != nil {
		return nil, err
	}

	key, err := s.targetPlatform(ctx, req.Platform)
	if err != nil {
		return nil, err
	}

	res, err := formula.ResolveKey(release, key)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("formula resolved", "formula", release.ID(), "platform", key, "selected", res.Selected)

	// 3. Journal
	txn := transaction.New(release.Name, release.Version, s.clock)
	txn.Platform = res.Requested.String()
	txn.Selected = res.Selected.String()
	txn.URL = res.Artifact.URL
	txn.SHA256 = res.Artifact.SHA256
	txn.BinDir = req.BinDir
	txn.Caveat = res.Artifact.Caveat
	if err := txn.Save(s.stateDir); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	observe := func(t install.Transition) {
		if t.From == "" {
			return
		}
		txn.Advance(transaction.State(t.To), t.Err)
		if err := txn.Save(s.stateDir); err != nil {
			s.logger.Warn("save transaction", "id", txn.ID, "state", t.To, "error", err)
		}
	}

	// 4. Install
	result, err := s.installer.WithObserver(observe).Install(ctx, res.Artifact, req.BinDir)
	if err != nil {
		return nil, err
	}

	// 5. Receipt
	txn.Files = result.Files
	txn.Replaced = result.Replaced
	if err := txn.Commit(s.stateDir); err != nil {
		return nil, fmt.Errorf("record receipt: %w", err)
	}
	s.discardStale(release.Name)

	return &InstallResult{
		Release:    release,
		Resolution: res,
		Install:    result,
		Receipt:    txn,
	}, nil
}

// discardStale drops journals left by earlier failed installs of name.
func (s *InstallService) discardStale(name string) {
	journals, err := transaction.ListJournals(s.stateDir)
	if err != nil {
		s.logger.Warn("list stale journals", "error", err)
		return
	}
	for _, j := range journals {
		if j.Formula != name {
			continue
		}
		if err := j.Discard(s.stateDir); err != nil {
			s.logger.Warn("discard stale journal", "id", j.ID, "error", err)
		}
	}
}

func (s *InstallService) targetPlatform(ctx context.Context, override string) (formula.Key, error) {
	if override != "" {
		key, err := formula.ParseKey(override)
		if err != nil {
			return formula.Key{}, fmt.Errorf("invalid platform %q: %w", override, err)
		}
		return key, nil
	}

	detector := s.detector
	if detector == nil {
		detector = platform.NewDetector()
	}
	info, err := detector.Detect(ctx)
	if err != nil {
		return formula.Key{}, fmt.Errorf("detect platform: %w", err)
	}
	return formula.KeyFor(info), nil
}
