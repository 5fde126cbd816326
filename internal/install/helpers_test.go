package install

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/usedatabrew/keg/internal/formula"
)

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

// makeTarGz builds a tar.gz archive in memory.
func makeTarGz(t *testing.T, entries ...tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		header := &tar.Header{
			Name:     e.name,
			Mode:     0644,
			Typeflag: typeflag,
			Linkname: e.linkname,
		}
		if typeflag == tar.TypeReg {
			header.Size = int64(len(e.body))
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("failed to write header for %s: %v", e.name, err)
		}
		if typeflag == tar.TypeReg {
			if _, err := tarWriter.Write([]byte(e.body)); err != nil {
				t.Fatalf("failed to write content for %s: %v", e.name, err)
			}
		}
	}

	if err := tarWriter.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzipWriter.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// releaseServer serves fixed files by path and counts requests.
type releaseServer struct {
	*httptest.Server
	files    map[string][]byte
	requests atomic.Int32
}

func newReleaseServer(t *testing.T, files map[string][]byte) *releaseServer {
	t.Helper()
	rs := &releaseServer{files: files}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.requests.Add(1)
		data, ok := rs.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if _, err := w.Write(data); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	t.Cleanup(rs.Close)
	return rs
}

// blinkArtifact serves a tarball holding the given entries and returns an
// artifact pointing at it.
func blinkArtifact(t *testing.T, entries ...tarEntry) (formula.Artifact, *releaseServer) {
	t.Helper()
	archive := makeTarGz(t, entries...)
	const path = "/usedatabrew/blink/releases/download/v1.14.0/blink_1.14.0_linux_amd64.tar.gz"
	rs := newReleaseServer(t, map[string][]byte{path: archive})
	return formula.Artifact{
		URL:     rs.URL + path,
		SHA256:  sha256Hex(archive),
		Install: []formula.InstallStep{formula.Bin("blink")},
	}, rs
}
