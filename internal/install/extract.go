package install

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/usedatabrew/keg/internal/formula"
)

// Extractor copies install step members out of tar.gz archives.
type Extractor struct{}

// NewExtractor creates a new extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// memberName canonicalizes an archive path: "./bin//blink" -> "bin/blink".
// Names that escape the archive root return "".
func memberName(name string) string {
	name = path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == ".." || strings.HasPrefix(name, "../") || path.IsAbs(name) {
		return ""
	}
	return name
}

// ExtractMembers writes the Source member of every step to stageDir/Target
// with mode 0755, reading the archive once. Members other than regular files
// are never followed. It fails if any source is missing.
func (e *Extractor) ExtractMembers(archivePath, stageDir string, steps []formula.InstallStep) error {
	wanted := make(map[string][]string, len(steps))
	for _, step := range steps {
		if err := formula.ValidateTarget(step.Target); err != nil {
			return fmt.Errorf("install target: %w", err)
		}
		src := memberName(step.Source)
		if src == "" {
			return fmt.Errorf("invalid archive member %q", step.Source)
		}
		wanted[src] = append(wanted[src], step.Target)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)

	if err := os.MkdirAll(stageDir, 0700); err != nil {
		return fmt.Errorf("create stage dir: %w", err)
	}

	found := make(map[string]bool, len(wanted))
	for len(found) < len(wanted) {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		// memberName rejects insecure paths itself
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("read tar header: %w", err)
		}

		name := memberName(header.Name)
		targets, ok := wanted[name]
		if !ok || found[name] {
			continue
		}
		if header.Typeflag != tar.TypeReg {
			return fmt.Errorf("archive member %s is not a regular file", header.Name)
		}

		// first target is read from the archive, the rest are copies of it
		first := filepath.Join(stageDir, targets[0])
		if err := writeExecutable(first, tarReader); err != nil {
			return err
		}
		for _, target := range targets[1:] {
			if err := copyFile(first, filepath.Join(stageDir, target)); err != nil {
				return err
			}
		}
		found[name] = true
	}

	if len(found) < len(wanted) {
		var missing []string
		for name := range wanted {
			if !found[name] {
				missing = append(missing, name)
			}
		}
		sort.Strings(missing)
		return fmt.Errorf("not found in archive: %s", strings.Join(missing, ", "))
	}

	return nil
}

func writeExecutable(dest string, r io.Reader) error {
	outFile, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(outFile, r); err != nil {
		outFile.Close()
		return fmt.Errorf("write file %s: %w", dest, err)
	}

	if err := outFile.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", dest, err)
	}

	// OpenFile's mode is subject to the umask
	return SetExecutable(dest)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	return writeExecutable(dest, in)
}

// SetExecutable sets executable permissions on a file
func SetExecutable(path string) error {
	// Set permissions to 0755 (rwxr-xr-x)
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return nil
}
