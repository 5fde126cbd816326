package platform

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func evalPlatform(t *testing.T, info *Info, cases []struct {
	name string
	code string
	want lua.LValue
}) {
	t.Helper()

	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if err := L.DoString(tt.code); err != nil {
				t.Fatalf("failed to execute code: %v", err)
			}
			got := L.Get(-1)
			L.Pop(1)

			if got.Type() != tt.want.Type() {
				t.Errorf("type mismatch: got %v, want %v", got.Type(), tt.want.Type())
				return
			}
			if got.String() != tt.want.String() {
				t.Errorf("value mismatch: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInjectPlatformTable_Linux(t *testing.T) {
	info := &Info{
		OS:       "linux",
		Arch:     "amd64",
		ArchRaw:  "x86_64",
		Platform: "ubuntu",
		Family:   "debian",
		Version:  "22.04",
	}

	evalPlatform(t, info, []struct {
		name string
		code string
		want lua.LValue
	}{
		{"os", `return platform.os`, lua.LString("linux")},
		{"arch", `return platform.arch`, lua.LString("amd64")},
		{"arch_raw", `return platform.arch_raw`, lua.LString("x86_64")},
		{"key", `return platform.key`, lua.LString("linux/amd64")},
		{"is_linux", `return platform.is_linux`, lua.LTrue},
		{"is_macos", `return platform.is_macos`, lua.LFalse},
		{"is_intel", `return platform.is_intel`, lua.LTrue},
		{"is_arm", `return platform.is_arm`, lua.LFalse},
		{"distro.id", `return platform.distro.id`, lua.LString("ubuntu")},
		{"distro.version", `return platform.distro.version`, lua.LString("22.04")},
	})
}

func TestInjectPlatformTable_MacOS(t *testing.T) {
	info := &Info{OS: "darwin", Arch: "arm64", ArchRaw: "arm64"}

	evalPlatform(t, info, []struct {
		name string
		code string
		want lua.LValue
	}{
		{"os", `return platform.os`, lua.LString("darwin")},
		{"is_macos", `return platform.is_macos`, lua.LTrue},
		{"is_arm", `return platform.is_arm`, lua.LTrue},
		{"is_intel", `return platform.is_intel`, lua.LFalse},
		{"is_apple_silicon", `return platform.is_apple_silicon`, lua.LTrue},
		{"distro is nil", `return platform.distro`, lua.LNil},
		{"when true", `return platform.when(platform.is_macos, "blink")`, lua.LString("blink")},
		{"when false", `return platform.when(platform.is_linux, "blink")`, lua.LNil},
	})
}

func TestPlatformTable_ReadOnly(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, &Info{OS: "linux", Arch: "amd64"}); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	for _, code := range []string{
		`platform.os = "darwin"`,
		`platform.new_field = true`,
		`setmetatable(platform, {})`,
	} {
		err := L.DoString(code)
		if err == nil {
			t.Errorf("expected error for %q", code)
			continue
		}
		if strings.Contains(code, "setmetatable") {
			continue
		}
		if !strings.Contains(err.Error(), "read-only") {
			t.Errorf("error for %q = %v, want read-only error", code, err)
		}
	}
}

func TestInjectPlatformTable_NilInfo(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, nil); err == nil {
		t.Fatal("InjectPlatformTable(nil) expected error")
	}
	if L.GetGlobal("platform") != lua.LNil {
		t.Error("platform global set despite the error")
	}
}

func TestInjectPlatformTable_UnlistedArch(t *testing.T) {
	evalPlatform(t, &Info{OS: "linux", Arch: "riscv64", ArchRaw: "riscv64"}, []struct {
		name string
		code string
		want lua.LValue
	}{
		{"key", `return platform.key`, lua.LString("linux/riscv64")},
		{"is_intel", `return platform.is_intel`, lua.LFalse},
		{"is_arm", `return platform.is_arm`, lua.LFalse},
	})
}
