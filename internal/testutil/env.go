// Package testutil provides utilities for testing keg in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env holds the directories an isolated test environment points keg at.
type Env struct {
	Root     string
	Config   string
	BinDir   string
	CacheDir string
	StateDir string
	TapDir   string
}

// SetupTestEnv points every keg setting at a fresh temp directory, so tests
// never touch the user's installs, cache or tap. The config file exists and
// is empty; write to Env.Config to add settings.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	root := t.TempDir()
	env := &Env{
		Root:     root,
		Config:   filepath.Join(root, "config", "config.toml"),
		BinDir:   filepath.Join(root, "bin"),
		CacheDir: filepath.Join(root, "cache"),
		StateDir: filepath.Join(root, "state"),
		TapDir:   filepath.Join(root, "tap"),
	}

	if err := os.MkdirAll(filepath.Dir(env.Config), 0o750); err != nil {
		t.Fatalf("failed to create config directory: %v", err)
	}
	if err := os.WriteFile(env.Config, nil, 0o644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	t.Setenv("KEG_CONFIG", env.Config)
	t.Setenv("KEG_BIN_DIR", env.BinDir)
	t.Setenv("KEG_CACHE_DIR", env.CacheDir)
	t.Setenv("KEG_STATE_DIR", env.StateDir)
	t.Setenv("KEG_TAP_DIR", env.TapDir)
	t.Setenv("KEG_KEYRING", "")
	t.Setenv("KEG_DEBUG", "false")

	// commits made by tests get a fixed author
	t.Setenv("KEG_GIT_NAME", "keg test")
	t.Setenv("KEG_GIT_EMAIL", "test@keg.invalid")

	return env
}
