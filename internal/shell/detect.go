package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// DetectShell detects the user's shell using multiple methods
func DetectShell(ctx context.Context) *DetectionResult {
	return detectShell(os.Getenv, func() (string, error) { return parentProcessName(ctx) })
}

func detectShell(getenv func(string) string, parent func() (string, error)) *DetectionResult {
	// Method 1: $SHELL (most reliable)
	if shell := getenv("SHELL"); shell != "" {
		if shellType := ParseShell(shell); shellType.IsValid() {
			return &DetectionResult{
				Shell:      shellType,
				Method:     "$SHELL environment variable",
				ShellPath:  shell,
				Confidence: "high",
			}
		}
	}

	// Method 2: parent process
	if parent != nil {
		if name, err := parent(); err == nil {
			if shellType := ParseShell(name); shellType.IsValid() {
				return &DetectionResult{
					Shell:      shellType,
					Method:     "parent process",
					ShellPath:  name,
					Confidence: "medium",
				}
			}
		}
	}

	return &DetectionResult{
		Shell:      ShellUnknown,
		Method:     "detection failed",
		Confidence: "none",
	}
}

// ParseShell extracts the shell type from a shell name or binary path.
// Login shells ("-zsh") are recognized.
func ParseShell(s string) ShellType {
	name := strings.ToLower(filepath.Base(s))
	name = strings.TrimPrefix(name, "-")
	name = strings.TrimSuffix(name, ".exe")

	switch ShellType(name) {
	case ShellBash, ShellZsh, ShellFish:
		return ShellType(name)
	default:
		return ShellUnknown
	}
}

func parentProcessName(ctx context.Context) (string, error) {
	p, err := process.NewProcessWithContext(ctx, int32(os.Getppid()))
	if err != nil {
		return "", err
	}
	return p.NameWithContext(ctx)
}

// ValidateShell validates that a shell type is supported
func ValidateShell(shell ShellType) error {
	if !shell.IsValid() {
		return &UnsupportedShellError{Shell: shell.String()}
	}
	return nil
}

// GetSupportedShells returns a list of supported shells
func GetSupportedShells() []ShellType {
	return []ShellType{ShellBash, ShellZsh, ShellFish}
}
