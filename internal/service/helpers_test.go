package service

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/usedatabrew/keg/internal/formula"
	"github.com/usedatabrew/keg/internal/install"
)

const blinkBody = "#!/bin/sh\necho blink\n"

func blinkTarball(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range map[string]string{"blink": blinkBody, "README.md": "# blink"} {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0755, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// blinkFixture serves a blink tarball over TLS and writes a formula for it.
type blinkFixture struct {
	server      *httptest.Server
	release     *formula.Release
	formulaPath string
}

func newBlinkFixture(t *testing.T) *blinkFixture {
	t.Helper()
	archive := blinkTarball(t)
	const path = "/usedatabrew/blink/releases/download/v1.14.0/blink_1.14.0_linux_amd64.tar.gz"
	const darwinPath = "/usedatabrew/blink/releases/download/v1.14.0/blink_1.14.0_darwin_amd64.tar.gz"

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case path, darwinPath:
			_, _ = w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	sum := sha256.Sum256(archive)
	release := &formula.Release{
		Name:        "blink",
		Description: "Open Source stream processing framework",
		Homepage:    "https://github.com/usedatabrew/blink",
		Version:     "1.14.0",
		Platforms: map[formula.Key]formula.Artifact{
			{OS: "linux", Arch: "amd64"}: {
				URL:     srv.URL + path,
				SHA256:  hex.EncodeToString(sum[:]),
				Install: []formula.InstallStep{formula.Bin("blink")},
			},
			{OS: "darwin", Arch: "amd64"}: {
				URL:     srv.URL + darwinPath,
				SHA256:  hex.EncodeToString(sum[:]),
				Install: []formula.InstallStep{formula.Bin("blink")},
			},
		},
		Fallbacks: map[formula.Key]formula.Fallback{
			{OS: "darwin", Arch: "arm64"}: {
				Use:    formula.Key{OS: "darwin", Arch: "amd64"},
				Caveat: formula.DefaultCaveat("blink", formula.Key{OS: "darwin", Arch: "arm64"}, formula.Key{OS: "darwin", Arch: "amd64"}),
			},
		},
	}

	f := &blinkFixture{server: srv, release: release}
	f.write(t)
	return f
}

// write regenerates the formula file from f.release.
func (f *blinkFixture) write(t *testing.T) {
	t.Helper()
	code, err := formula.NewGenerator().Generate(f.release)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if f.formulaPath == "" {
		f.formulaPath = filepath.Join(t.TempDir(), "blink.lua")
	}
	if err := os.WriteFile(f.formulaPath, []byte(code), 0644); err != nil {
		t.Fatal(err)
	}
}

func (f *blinkFixture) installer(t *testing.T) *install.Installer {
	t.Helper()
	return install.New(install.Options{
		CacheDir:   filepath.Join(t.TempDir(), "cache"),
		HTTPClient: f.server.Client(),
		Retries:    1,
	})
}
