package shell

import (
	"errors"
	"testing"
)

func TestDetectShell(t *testing.T) {
	tests := []struct {
		name           string
		shellEnv       string
		parent         string
		parentErr      error
		wantShell      ShellType
		wantMethod     string
		wantConfidence string
	}{
		{
			name:           "Bash from SHELL",
			shellEnv:       "/bin/bash",
			wantShell:      ShellBash,
			wantMethod:     "$SHELL environment variable",
			wantConfidence: "high",
		},
		{
			name:           "Zsh from SHELL wins over parent",
			shellEnv:       "/usr/bin/zsh",
			parent:         "fish",
			wantShell:      ShellZsh,
			wantMethod:     "$SHELL environment variable",
			wantConfidence: "high",
		},
		{
			name:           "Fish from parent process",
			shellEnv:       "/bin/ksh",
			parent:         "fish",
			wantShell:      ShellFish,
			wantMethod:     "parent process",
			wantConfidence: "medium",
		},
		{
			name:           "Login shell parent",
			parent:         "-zsh",
			wantShell:      ShellZsh,
			wantMethod:     "parent process",
			wantConfidence: "medium",
		},
		{
			name:           "Parent lookup fails",
			parentErr:      errors.New("no such process"),
			wantShell:      ShellUnknown,
			wantMethod:     "detection failed",
			wantConfidence: "none",
		},
		{
			name:           "Nothing known",
			shellEnv:       "/bin/ksh",
			parent:         "make",
			wantShell:      ShellUnknown,
			wantMethod:     "detection failed",
			wantConfidence: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(string) string { return tt.shellEnv }
			parent := func() (string, error) { return tt.parent, tt.parentErr }

			result := detectShell(getenv, parent)
			if result.Shell != tt.wantShell {
				t.Errorf("shell = %v, want %v", result.Shell, tt.wantShell)
			}
			if result.Method != tt.wantMethod {
				t.Errorf("method = %v, want %v", result.Method, tt.wantMethod)
			}
			if result.Confidence != tt.wantConfidence {
				t.Errorf("confidence = %v, want %v", result.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestParseShell(t *testing.T) {
	tests := map[string]ShellType{
		"/bin/bash":           ShellBash,
		"/usr/local/bin/fish": ShellFish,
		"ZSH":                 ShellZsh,
		"-bash":               ShellBash,
		"bash.exe":            ShellBash,
		"/bin/sh":             ShellUnknown,
		"":                    ShellUnknown,
	}
	for in, want := range tests {
		if got := ParseShell(in); got != want {
			t.Errorf("ParseShell(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestValidateShell(t *testing.T) {
	for _, s := range GetSupportedShells() {
		if err := ValidateShell(s); err != nil {
			t.Errorf("ValidateShell(%s) error = %v", s, err)
		}
	}
	var use *UnsupportedShellError
	if err := ValidateShell(ShellUnknown); !errors.As(err, &use) {
		t.Errorf("ValidateShell(unknown) error = %v", err)
	}
}
