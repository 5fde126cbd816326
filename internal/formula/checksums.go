package formula

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReleaseURLTemplate is the GitHub release download location of an artifact.
// Placeholders: {repo}, {version}, {file}.
const ReleaseURLTemplate = "https://github.com/{repo}/releases/download/v{version}/{file}"

// Meta describes a release whose artifacts are listed in a checksums file.
type Meta struct {
	Name        string
	Description string
	Homepage    string
	Version     string

	// Repo is the GitHub "owner/name" hosting the release.
	Repo string
	// URLTemplate overrides ReleaseURLTemplate.
	URLTemplate string
	// Binaries are the archive members installed from every artifact.
	// Defaults to Name.
	Binaries []string
}

func (m Meta) url(file string) string {
	tmpl := m.URLTemplate
	if tmpl == "" {
		tmpl = ReleaseURLTemplate
	}
	return strings.NewReplacer(
		"{repo}", m.Repo,
		"{version}", m.Version,
		"{file}", file,
	).Replace(tmpl)
}

// FromChecksumsFile builds a release from a GoReleaser checksums.txt.
func FromChecksumsFile(meta Meta, path string) (*Release, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checksum file: %w", err)
	}
	defer f.Close()

	return FromChecksums(meta, f)
}

// FromChecksums builds a release from "<sha256>  <file>" lines. Only tarballs
// named <project>_<version>_<os>_<arch>.tar.gz are used; other entries
// (checksums of packages, signatures) are ignored. When darwin/amd64 is built
// but darwin/arm64 is not, darwin/arm64 falls back to it with the default
// caveat.
func FromChecksums(meta Meta, r io.Reader) (*Release, error) {
	if meta.Version == "" {
		return nil, fmt.Errorf("version is required")
	}
	if meta.Repo == "" && meta.URLTemplate == "" {
		return nil, fmt.Errorf("repo or URL template is required")
	}
	meta.Version = strings.TrimPrefix(meta.Version, "v")

	binaries := meta.Binaries
	if len(binaries) == 0 {
		binaries = []string{meta.Name}
	}
	steps := make([]InstallStep, 0, len(binaries))
	for _, b := range binaries {
		steps = append(steps, InstallStep{Source: b, Target: lastSegment(b)})
	}

	release := &Release{
		Name:        meta.Name,
		Description: meta.Description,
		Homepage:    meta.Homepage,
		Version:     meta.Version,
		Platforms:   make(map[Key]Artifact),
		Fallbacks:   make(map[Key]Fallback),
	}

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		if len(parts) != 2 {
			return nil, fmt.Errorf("checksums line %d: expected \"<sha256>  <file>\"", lineNo)
		}
		sum, file := strings.ToLower(parts[0]), strings.TrimPrefix(parts[1], "*")

		key, ok := artifactKey(file, release.Version)
		if !ok {
			continue
		}
		if _, dup := release.Platforms[key]; dup {
			return nil, fmt.Errorf("checksums line %d: second artifact for %s", lineNo, key)
		}
		release.Platforms[key] = Artifact{
			URL:     meta.url(file),
			SHA256:  sum,
			Install: append([]InstallStep(nil), steps...),
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checksums: %w", err)
	}

	arm := Key{OS: "darwin", Arch: "arm64"}
	intel := Key{OS: "darwin", Arch: "amd64"}
	if _, hasARM := release.Platforms[arm]; !hasARM {
		if _, hasIntel := release.Platforms[intel]; hasIntel {
			release.Fallbacks[arm] = Fallback{
				Use:    intel,
				Caveat: DefaultCaveat(release.Name, arm, intel),
			}
		}
	}

	if err := release.Validate(); err != nil {
		return nil, err
	}
	return release, nil
}

// artifactKey extracts the platform from "<project>_<version>_<os>_<arch>.tar.gz".
func artifactKey(file, version string) (Key, bool) {
	var base string
	switch {
	case strings.HasSuffix(file, ".tar.gz"):
		base = strings.TrimSuffix(file, ".tar.gz")
	case strings.HasSuffix(file, ".tgz"):
		base = strings.TrimSuffix(file, ".tgz")
	default:
		return Key{}, false
	}

	_, rest, found := strings.Cut(base, "_"+version+"_")
	if !found {
		return Key{}, false
	}
	osName, arch, found := strings.Cut(rest, "_")
	if !found {
		return Key{}, false
	}

	key, err := ParseKey(osName + "/" + arch)
	if err != nil {
		return Key{}, false
	}
	return key, true
}
