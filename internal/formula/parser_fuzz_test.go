package formula

import (
	"context"
	"testing"
	"time"
)

func FuzzParser_ParseString(f *testing.F) {
	f.Add(`formula = { name = "blink", version = "1.14.0" }`)
	f.Add(`formula = { platforms = { ["linux/amd64"] = { install = { "blink" } } } }`)
	f.Add(`formula = { fallbacks = { ["darwin/arm64"] = "darwin/amd64" } }`)

	parser := NewParser(nil)

	f.Fuzz(func(t *testing.T, luaCode string) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		release, err := parser.ParseString(ctx, luaCode)
		if err == nil && release.Validate() != nil {
			t.Errorf("ParseString() returned an invalid release for %q", luaCode)
		}
	})
}

func FuzzDecodeYAML(f *testing.F) {
	f.Add([]byte("name: blink\nversion: 1.14.0\n"))
	f.Add([]byte("platforms:\n  linux/amd64:\n    install: [blink]\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		release, err := DecodeYAML(data)
		if err == nil && release.Validate() != nil {
			t.Errorf("DecodeYAML() returned an invalid release for %q", data)
		}
	})
}
