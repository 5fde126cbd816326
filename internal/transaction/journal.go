// Package transaction records keg installs: an exclusive lock over the state
// directory, a journal per install saved atomically at every state change,
// and a receipt per installed formula.
package transaction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State of an install. Values match the installer's state machine.
type State string

const (
	StatePending    State = "pending"
	StateDownloaded State = "downloaded"
	StateVerified   State = "verified"
	StateInstalled  State = "installed"
	StateFailed     State = "failed"
)

// Terminal reports whether the install has finished, successfully or not.
func (s State) Terminal() bool {
	return s == StateInstalled || s == StateFailed
}

const (
	schemaVersion = 1
	journalPrefix = "txn-install-"
)

// InstallTxn is the journal of one install of one formula release.
type InstallTxn struct {
	Version int    `json:"version"` // Schema version for future evolution
	ID      string `json:"id"`

	Formula        string `json:"formula"`
	FormulaVersion string `json:"formula_version"`
	// Platform is the host the install was resolved for; Selected is the
	// platform whose artifact was used (they differ for fallbacks).
	Platform string `json:"platform"`
	Selected string `json:"selected"`
	URL      string `json:"url"`
	SHA256   string `json:"sha256"`
	BinDir   string `json:"bin_dir"`
	Caveat   string `json:"caveat,omitempty"`

	State     State    `json:"state"`
	Files     []string `json:"files"`
	Replaced  []string `json:"replaced,omitempty"`
	LastError string   `json:"last_error,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`

	clock Clock
}

// New starts a pending install journal for formula@version.
func New(formula, version string, clock Clock) *InstallTxn {
	if clock == nil {
		clock = RealClock{}
	}
	now := clock.Now()
	return &InstallTxn{
		Version:        schemaVersion,
		ID:             uuid.New().String(),
		Formula:        formula,
		FormulaVersion: version,
		State:          StatePending,
		Files:          []string{},
		StartedAt:      now,
		UpdatedAt:      now,
		clock:          clock,
	}
}

// Advance records a state change. err is kept as LastError.
func (t *InstallTxn) Advance(state State, err error) {
	t.State = state
	if err != nil {
		t.LastError = err.Error()
	} else {
		t.LastError = ""
	}
	if t.clock == nil {
		t.clock = RealClock{}
	}
	t.UpdatedAt = t.clock.Now()
}

// Filename is the journal's file name inside the state directory.
func (t *InstallTxn) Filename() string {
	return journalPrefix + t.ID + ".json"
}

// Save writes the journal to dir atomically.
func (t *InstallTxn) Save(dir string) error {
	return writeJSONAtomic(dir, t.Filename(), t)
}

// Discard removes the journal from dir.
func (t *InstallTxn) Discard(dir string) error {
	if err := os.Remove(filepath.Join(dir, t.Filename())); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove transaction file: %w", err)
	}
	return nil
}

// Load reads a journal from disk.
func Load(path string) (*InstallTxn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transaction file: %w", err)
	}

	var txn InstallTxn
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	if txn.Version > schemaVersion {
		return nil, fmt.Errorf("transaction %s has unsupported schema version %d", filepath.Base(path), txn.Version)
	}

	return &txn, nil
}

// ListJournals returns every journal left in dir, oldest first. Journals
// of finished installs are removed, so the ones found here were
// interrupted or failed.
func ListJournals(dir string) ([]*InstallTxn, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var txns []*InstallTxn
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, journalPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		txn, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	sort.Slice(txns, func(i, j int) bool {
		return txns[i].StartedAt.Before(txns[j].StartedAt)
	})
	return txns, nil
}

// writeJSONAtomic uses the write-then-rename pattern.
func writeJSONAtomic(dir, name string, v any) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	finalPath := filepath.Join(dir, name)
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", name, err)
	}

	// Sync directory for durability
	df, err := os.Open(dir)
	if err == nil {
		defer df.Close()
		if syncErr := df.Sync(); syncErr != nil {
			return fmt.Errorf("sync directory: %w", syncErr)
		}
	}

	return nil
}
