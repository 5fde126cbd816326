package platform

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// InjectPlatformTable exposes info to Lua as the read-only global "platform".
// Formula code runs after it, so descriptors can branch on the host the way
// Homebrew formulas use on_macos and Hardware::CPU.
func InjectPlatformTable(L *lua.LState, info *Info) error {
	if info == nil {
		return fmt.Errorf("platform info is required")
	}

	t := L.NewTable()
	for name, value := range map[string]string{
		"os":       info.OS,
		"arch":     info.Arch,
		"arch_raw": info.ArchRaw,
		"key":      info.String(),
	} {
		t.RawSetString(name, lua.LString(value))
	}
	for name, value := range map[string]bool{
		"is_linux":         info.IsLinux(),
		"is_macos":         info.IsMacOS(),
		"is_windows":       info.IsWindows(),
		"is_intel":         info.IsIntel(),
		"is_arm":           info.IsARM(),
		"is_apple_silicon": info.IsAppleSilicon(),
	} {
		t.RawSetString(name, lua.LBool(value))
	}

	t.RawSetString("distro", distroValue(L, info.GetDistro()))
	t.RawSetString("when", L.NewFunction(luaWhen))

	L.SetGlobal("platform", readOnly(L, t))
	return nil
}

func distroValue(L *lua.LState, d *Distro) lua.LValue {
	if d == nil {
		return lua.LNil
	}
	t := L.NewTable()
	t.RawSetString("id", lua.LString(d.ID))
	t.RawSetString("family", lua.LString(d.Family))
	t.RawSetString("version", lua.LString(d.Version))
	return t
}

// luaWhen implements platform.when(cond, value): value if cond, else nil.
// A nil result inside a list is skipped by the formula parser.
func luaWhen(L *lua.LState) int {
	if L.CheckBool(1) {
		L.Push(L.Get(2))
	} else {
		L.Push(lua.LNil)
	}
	return 1
}

// readOnly returns an empty proxy over t. Reads go through __index, writes
// raise an error and the metatable itself is locked.
func readOnly(L *lua.LState, t *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	mt.RawSetString("__index", t)
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only")
		return 0
	}))
	mt.RawSetString("__metatable", lua.LString("locked"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
