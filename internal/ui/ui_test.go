package ui

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	if p.Styled() {
		t.Fatal("a bytes.Buffer must not get styled output")
	}

	p.Header("Installing %s", "blink@1.14.0")
	p.Success("installed %d file(s)", 1)
	p.Warn("signature not checked")
	p.Error("digest mismatch")
	p.Detail("/usr/local/bin/blink")
	p.Field("version", "1.14.0")

	want := "==> Installing blink@1.14.0\n" +
		"✓ installed 1 file(s)\n" +
		"Warning: signature not checked\n" +
		"Error: digest mismatch\n" +
		"  /usr/local/bin/blink\n" +
		"version:   1.14.0\n"
	if got := buf.String(); got != want {
		t.Errorf("output =\n%q\nwant\n%q", got, want)
	}
}

func TestPrinter_Caveat(t *testing.T) {
	tests := []struct {
		name   string
		styled bool
		text   string
		want   []string
		empty  bool
	}{
		{
			name: "plain",
			text: "The darwin_arm64 architecture is not supported\nfor the Blink formula.",
			want: []string{"==> Caveats\n", "The darwin_arm64 architecture is not supported\nfor the Blink formula.\n"},
		},
		{
			name:   "styled box",
			styled: true,
			text:   "compatibility mode",
			want:   []string{"Caveats", "compatibility mode", "╭", "╯"},
		},
		{
			name:  "empty",
			text:  "  \n",
			empty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewWithStyle(&buf, tt.styled).Caveat(tt.text)

			got := buf.String()
			if tt.empty {
				if got != "" {
					t.Errorf("Caveat(%q) wrote %q", tt.text, got)
				}
				return
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if IsTerminal(f) {
		t.Error("IsTerminal(regular file) = true")
	}
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("IsTerminal(buffer) = true")
	}

	t.Setenv("NO_COLOR", "1")
	if IsTerminal(os.Stdout) {
		t.Error("IsTerminal must honor NO_COLOR")
	}
}
