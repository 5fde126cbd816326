package formula

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/usedatabrew/keg/internal/platform"
)

const (
	blinkLinuxSHA  = "9bf58c13971b0b5f2fb800f552b137ff73e33195238a04aaf7612886d950d12b"
	blinkDarwinSHA = "955a1246aa3f5560c71b44a2c842eb757762c3bff29cdf2bda05bc02d4e860b6"
)

// mockDetector is a test implementation of platform.Detector.
type mockDetector struct {
	info *platform.Info
	err  error
}

func (m *mockDetector) Detect(ctx context.Context) (*platform.Info, error) {
	return m.info, m.err
}

func TestParser_ParseString_Minimal(t *testing.T) {
	luaCode := `
		formula = {
			name = "tool",
			version = "0.1.0",
			platforms = {
				["linux/amd64"] = {
					url = "https://example.com/tool_0.1.0_linux_amd64.tar.gz",
					sha256 = "` + blinkLinuxSHA + `",
					install = "tool",
				},
			},
		}
	`

	release, err := NewParser(nil).ParseString(context.Background(), luaCode)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	if release.ID() != "tool@0.1.0" {
		t.Errorf("ID() = %s, want tool@0.1.0", release.ID())
	}
	a, ok := release.Platforms[Key{OS: "linux", Arch: "amd64"}]
	if !ok {
		t.Fatal("linux/amd64 artifact missing")
	}
	if len(a.Install) != 1 || a.Install[0] != Bin("tool") {
		t.Errorf("Install = %v, want [tool]", a.Install)
	}
}

func TestParser_ParseFile_Blink(t *testing.T) {
	release, err := NewParser(nil).ParseFile(context.Background(), filepath.Join("testdata", "blink.lua"))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	if release.Name != "blink" || release.Version != "1.14.0" {
		t.Errorf("got %s, want blink@1.14.0", release.ID())
	}
	if len(release.Platforms) != 2 {
		t.Errorf("Platforms = %d, want 2", len(release.Platforms))
	}

	linux := release.Platforms[Key{OS: "linux", Arch: "amd64"}]
	if linux.SHA256 != blinkLinuxSHA {
		t.Errorf("linux sha256 = %s, want %s", linux.SHA256, blinkLinuxSHA)
	}
	if !strings.HasSuffix(linux.URL, "blink_1.14.0_linux_amd64.tar.gz") {
		t.Errorf("linux url = %s", linux.URL)
	}

	fb, ok := release.Fallbacks[Key{OS: "darwin", Arch: "arm64"}]
	if !ok {
		t.Fatal("darwin/arm64 fallback missing")
	}
	if fb.Use != (Key{OS: "darwin", Arch: "amd64"}) {
		t.Errorf("fallback use = %s, want darwin/amd64", fb.Use)
	}
	if !strings.Contains(fb.Caveat, "compatibility\nmode") {
		t.Errorf("fallback caveat = %q", fb.Caveat)
	}
}

func TestParser_ParseFile_DefaultCaveat(t *testing.T) {
	release, err := NewParser(nil).ParseFile(context.Background(), filepath.Join("testdata", "databrew-blink.lua"))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}

	arm := Key{OS: "darwin", Arch: "arm64"}
	want := DefaultCaveat("databrew-blink", arm, Key{OS: "darwin", Arch: "amd64"})
	if got := release.Fallbacks[arm].Caveat; got != want {
		t.Errorf("caveat = %q, want %q", got, want)
	}
	if !strings.Contains(want, "DatabrewBlink") {
		t.Errorf("default caveat should name the class: %q", want)
	}
}

func TestParser_ParseString_InstallMapping(t *testing.T) {
	luaCode := `
		formula = {
			name = "tool",
			version = "2",
			platforms = {
				["linux/x86_64"] = {
					url = "https://example.com/tool_2_linux_amd64.tar.gz",
					sha256 = "` + strings.ToUpper(blinkLinuxSHA) + `",
					install = {
						"tool",
						{ source = "bin/toolctl" },
						{ source = "share/helper.sh", target = "tool-helper" },
					},
				},
			},
		}
	`

	release, err := NewParser(nil).ParseString(context.Background(), luaCode)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	a, ok := release.Platforms[Key{OS: "linux", Arch: "amd64"}]
	if !ok {
		t.Fatalf("x86_64 should normalize to amd64, got keys %v", release.Keys())
	}
	if a.SHA256 != blinkLinuxSHA {
		t.Errorf("sha256 not lowercased: %s", a.SHA256)
	}

	want := []InstallStep{
		{Source: "tool", Target: "tool"},
		{Source: "bin/toolctl", Target: "toolctl"},
		{Source: "share/helper.sh", Target: "tool-helper"},
	}
	if len(a.Install) != len(want) {
		t.Fatalf("Install = %v, want %v", a.Install, want)
	}
	for i := range want {
		if a.Install[i] != want[i] {
			t.Errorf("Install[%d] = %v, want %v", i, a.Install[i], want[i])
		}
	}
}

func TestParser_ParseString_PlatformConditional(t *testing.T) {
	luaCode := `
		local sha = "` + blinkLinuxSHA + `"
		formula = {
			name = "tool",
			version = "1.0.0",
			platforms = {
				["linux/amd64"] = {
					url = "https://example.com/tool_1.0.0_linux_amd64.tar.gz",
					sha256 = sha,
					install = {
						"tool",
						platform.when(platform.is_linux, "tool-linux-extra"),
						platform.when(platform.is_macos, "tool-macos-extra"),
					},
				},
			},
		}
	`

	tests := []struct {
		name string
		info *platform.Info
		want []string
	}{
		{
			name: "linux host",
			info: &platform.Info{OS: "linux", Arch: "amd64"},
			want: []string{"tool", "tool-linux-extra"},
		},
		{
			name: "macos host",
			info: &platform.Info{OS: "darwin", Arch: "arm64"},
			want: []string{"tool", "tool-macos-extra"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser(&mockDetector{info: tt.info})
			release, err := parser.ParseString(context.Background(), luaCode)
			if err != nil {
				t.Fatalf("ParseString() error = %v", err)
			}
			got := release.Platforms[Key{OS: "linux", Arch: "amd64"}].Binaries()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Binaries() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParser_ParseString_DetectorError(t *testing.T) {
	parser := NewParser(&mockDetector{err: errors.New("no host")})
	_, err := parser.ParseString(context.Background(), `formula = {}`)
	if err == nil || !strings.Contains(err.Error(), "platform detection failed") {
		t.Errorf("ParseString() error = %v, want platform detection error", err)
	}
}

func TestParser_ParseString_Errors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
	}{
		{
			name:    "syntax error",
			code:    `formula = {`,
			wantMsg: "Lua syntax error",
		},
		{
			name:    "missing formula table",
			code:    `other = {}`,
			wantMsg: "missing or invalid 'formula' table",
		},
		{
			name:    "name wrong type",
			code:    `formula = { name = 3 }`,
			wantMsg: "invalid field type",
		},
		{
			name:    "platforms not a table",
			code:    `formula = { name = "x", version = "1", platforms = "linux" }`,
			wantMsg: "invalid field type",
		},
		{
			name:    "bad platform key",
			code:    `formula = { name = "x", version = "1", platforms = { ["plan9"] = {} } }`,
			wantMsg: "invalid platform key",
		},
		{
			name:    "numeric platform key",
			code:    `formula = { name = "x", version = "1", platforms = { {} } }`,
			wantMsg: "invalid platform key",
		},
		{
			name:    "no platforms",
			code:    `formula = { name = "x", version = "1" }`,
			wantMsg: "formula validation failed",
		},
		{
			name: "sandbox blocks os",
			code: `os.execute("true")
				formula = {}`,
			wantMsg: "Lua syntax error",
		},
		{
			name:    "sandbox blocks require",
			code:    `local m = require("io")`,
			wantMsg: "Lua syntax error",
		},
	}

	parser := NewParser(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseString(context.Background(), tt.code)
			if err == nil {
				t.Fatal("ParseString() expected error, got nil")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error type = %T, want *ParseError", err)
			}
			if parseErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q (detail: %s)", parseErr.Message, tt.wantMsg, parseErr.Detail)
			}
		})
	}
}

func TestParser_ParseString_ValidationErrorUnwraps(t *testing.T) {
	luaCode := `
		formula = {
			name = "tool",
			version = "1.0.0",
			platforms = {
				["linux/amd64"] = {
					url = "http://example.com/tool_1.0.0_linux_amd64.tar.gz",
					sha256 = "` + blinkLinuxSHA + `",
					install = "tool",
				},
			},
		}
	`

	_, err := NewParser(nil).ParseString(context.Background(), luaCode)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if ve.Field != "platforms.linux/amd64.url" {
		t.Errorf("Field = %s", ve.Field)
	}
}

func TestParser_ParseString_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewParser(nil).ParseString(ctx, `while true do end`)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ParseString() error = %v, want deadline exceeded", err)
	}
}

func TestParser_ParseFile_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.lua")
	data := make([]byte, maxFormulaFileSize+1)
	for i := range data {
		data[i] = ' '
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewParser(nil).ParseFile(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("ParseFile() error = %v, want too large", err)
	}
}

func TestFormatError(t *testing.T) {
	err := &ParseError{
		Message: "Lua syntax error",
		Detail:  "<string>:1: unexpected EOF\nstack traceback:\n\t[G]: ?",
	}

	if got := FormatError(err, false); got != "Lua syntax error: <string>:1: unexpected EOF" {
		t.Errorf("FormatError(false) = %q", got)
	}
	if got := FormatError(err, true); !strings.Contains(got, "stack traceback") {
		t.Errorf("FormatError(true) should keep traceback, got %q", got)
	}
	if got := FormatError(errors.New("plain"), false); got != "plain" {
		t.Errorf("FormatError(plain) = %q", got)
	}
}
