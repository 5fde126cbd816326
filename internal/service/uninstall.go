package service

import (
	"context"
	"fmt"

	"github.com/usedatabrew/keg/internal/install"
	"github.com/usedatabrew/keg/internal/transaction"
)

// UninstallService removes installed formulas using their receipts.
type UninstallService struct {
	stateDir string
}

// NewUninstallService creates a new uninstall service.
func NewUninstallService(stateDir string) *UninstallService {
	return &UninstallService{stateDir: stateDir}
}

// Execute removes the files recorded in the receipt of formula name, then
// the receipt itself. It returns the removed receipt.
func (s *UninstallService) Execute(ctx context.Context, name string) (*transaction.InstallTxn, error) {
	lock, err := transaction.AcquireLock(ctx, s.stateDir)
	if err != nil {
		return nil, fmt.Errorf("acquire install lock: %w", err)
	}
	defer func() { _ = lock.Release() }()

	receipt, err := transaction.LoadReceipt(s.stateDir, name)
	if err != nil {
		return nil, err
	}

	if err := install.Uninstall(receipt.Files); err != nil {
		return nil, fmt.Errorf("remove files of %s: %w", name, err)
	}
	if err := transaction.RemoveReceipt(s.stateDir, name); err != nil {
		return nil, fmt.Errorf("remove receipt: %w", err)
	}
	return receipt, nil
}

// Installed lists the receipts of every installed formula.
func (s *UninstallService) Installed() ([]*transaction.InstallTxn, error) {
	return transaction.ListReceipts(s.stateDir)
}

// Incomplete lists journals of installs that failed or were interrupted.
func (s *UninstallService) Incomplete() ([]*transaction.InstallTxn, error) {
	return transaction.ListJournals(s.stateDir)
}
