package formula

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlRelease is the on-disk YAML layout of a formula.
type yamlRelease struct {
	Name        string                  `yaml:"name"`
	Description string                  `yaml:"description,omitempty"`
	Homepage    string                  `yaml:"homepage,omitempty"`
	Version     string                  `yaml:"version"`
	Platforms   map[string]yamlArtifact `yaml:"platforms"`
	Fallbacks   map[string]yamlFallback `yaml:"fallbacks,omitempty"`
}

type yamlArtifact struct {
	URL          string     `yaml:"url"`
	SHA256       string     `yaml:"sha256"`
	SignatureURL string     `yaml:"signature_url,omitempty"`
	Install      []yamlStep `yaml:"install"`
	Caveat       string     `yaml:"caveat,omitempty"`
}

type yamlFallback struct {
	Use    string `yaml:"use"`
	Caveat string `yaml:"caveat,omitempty"`
}

// yamlStep accepts either a scalar ("blink") or a mapping
// ({source: bin/blink, target: blink}).
type yamlStep struct {
	Source string `yaml:"source"`
	Target string `yaml:"target,omitempty"`
}

func (s *yamlStep) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Source = value.Value
		s.Target = value.Value
		return nil
	}

	type plain yamlStep
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = yamlStep(p)
	if s.Target == "" {
		s.Target = lastSegment(s.Source)
	}
	return nil
}

func (s yamlStep) MarshalYAML() (interface{}, error) {
	if s.Source == s.Target {
		return s.Source, nil
	}
	type plain yamlStep
	return plain(s), nil
}

// DecodeYAML parses and validates a YAML formula.
func DecodeYAML(data []byte) (*Release, error) {
	var raw yamlRelease
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Message: "YAML syntax error", Detail: err.Error()}
	}

	release := &Release{
		Name:        raw.Name,
		Description: raw.Description,
		Homepage:    raw.Homepage,
		Version:     raw.Version,
		Platforms:   make(map[Key]Artifact, len(raw.Platforms)),
		Fallbacks:   make(map[Key]Fallback, len(raw.Fallbacks)),
	}

	for name, ya := range raw.Platforms {
		key, err := ParseKey(name)
		if err != nil {
			return nil, &ParseError{Message: "invalid platform key", Detail: "platforms: " + err.Error()}
		}
		if _, dup := release.Platforms[key]; dup {
			return nil, &ParseError{Message: "duplicate platform", Detail: "platforms." + key.String()}
		}
		artifact := Artifact{
			URL:          ya.URL,
			SHA256:       strings.ToLower(ya.SHA256),
			SignatureURL: ya.SignatureURL,
			Caveat:       strings.TrimSpace(ya.Caveat),
		}
		for _, step := range ya.Install {
			artifact.Install = append(artifact.Install, InstallStep(step))
		}
		release.Platforms[key] = artifact
	}

	for name, yf := range raw.Fallbacks {
		key, err := ParseKey(name)
		if err != nil {
			return nil, &ParseError{Message: "invalid platform key", Detail: "fallbacks: " + err.Error()}
		}
		use, err := ParseKey(yf.Use)
		if err != nil {
			return nil, &ParseError{Message: "invalid fallback platform", Detail: "fallbacks." + key.String() + ".use: " + err.Error()}
		}
		caveat := strings.TrimSpace(yf.Caveat)
		if caveat == "" {
			caveat = DefaultCaveat(release.Name, key, use)
		}
		release.Fallbacks[key] = Fallback{Use: use, Caveat: caveat}
	}

	if err := release.Validate(); err != nil {
		return nil, &ParseError{Message: "formula validation failed", Detail: err.Error(), Err: err}
	}

	return release, nil
}

// EncodeYAML renders a release in the YAML layout read by DecodeYAML.
func EncodeYAML(r *Release) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("release is required")
	}

	raw := yamlRelease{
		Name:        r.Name,
		Description: r.Description,
		Homepage:    r.Homepage,
		Version:     r.Version,
		Platforms:   make(map[string]yamlArtifact, len(r.Platforms)),
	}

	for key, a := range r.Platforms {
		ya := yamlArtifact{
			URL:          a.URL,
			SHA256:       a.SHA256,
			SignatureURL: a.SignatureURL,
			Caveat:       a.Caveat,
		}
		for _, step := range a.Install {
			ya.Install = append(ya.Install, yamlStep(step))
		}
		raw.Platforms[key.String()] = ya
	}

	if len(r.Fallbacks) > 0 {
		raw.Fallbacks = make(map[string]yamlFallback, len(r.Fallbacks))
		for key, fb := range r.Fallbacks {
			raw.Fallbacks[key.String()] = yamlFallback{Use: fb.Use.String(), Caveat: fb.Caveat}
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&raw); err != nil {
		return nil, fmt.Errorf("encode formula: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode formula: %w", err)
	}

	return buf.Bytes(), nil
}
