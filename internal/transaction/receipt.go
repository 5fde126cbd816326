package transaction

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const receiptsDir = "receipts"

// ErrNoReceipt is returned when a formula has no install receipt.
var ErrNoReceipt = errors.New("formula is not installed")

// Commit finishes a successful install: the journal becomes the formula's
// receipt (receipts/<formula>.json, replacing any earlier one) and the
// journal file is removed.
func (t *InstallTxn) Commit(dir string) error {
	if t.State != StateInstalled {
		return fmt.Errorf("commit %s: install is %s, not %s", t.ID, t.State, StateInstalled)
	}
	if err := writeJSONAtomic(filepath.Join(dir, receiptsDir), t.Formula+".json", t); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	return t.Discard(dir)
}

// LoadReceipt reads the receipt of an installed formula.
func LoadReceipt(dir, formula string) (*InstallTxn, error) {
	path := filepath.Join(dir, receiptsDir, formula+".json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", formula, ErrNoReceipt)
	}
	return Load(path)
}

// ListReceipts returns the receipts of every installed formula, sorted by name.
func ListReceipts(dir string) ([]*InstallTxn, error) {
	entries, err := os.ReadDir(filepath.Join(dir, receiptsDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read receipts: %w", err)
	}

	var receipts []*InstallTxn
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		r, err := Load(filepath.Join(dir, receiptsDir, e.Name()))
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}

	sort.Slice(receipts, func(i, j int) bool {
		return receipts[i].Formula < receipts[j].Formula
	})
	return receipts, nil
}

// RemoveReceipt deletes the receipt of a formula.
func RemoveReceipt(dir, formula string) error {
	err := os.Remove(filepath.Join(dir, receiptsDir, formula+".json"))
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", formula, ErrNoReceipt)
	}
	return err
}
