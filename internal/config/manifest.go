// Package config loads the widget manifest (widget.yaml) and the runtime
// settings of the widget host.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// RuntimeAPI is the widget API version implemented by this runtime.
// Manifests may target any version with the same major and no newer minor.
const RuntimeAPI = "v1.2.0"

// ManifestFile is the manifest file name looked up in a widget directory.
const ManifestFile = "widget.yaml"

// Manifest represents the optional widget.yaml configuration.
type Manifest struct {
	Name string `yaml:"name,omitempty"`
	ID   string `yaml:"id,omitempty"`
	API  string `yaml:"api,omitempty"`
	// Widget selects a built-in sample widget for the host.
	Widget string `yaml:"widget,omitempty"`
	// Document is the default document id opened by the host.
	Document string `yaml:"document,omitempty"`
}

// Resolved contains resolved manifest values.
type Resolved struct {
	Root       string
	ModulePath string
	Name       string
	ID         string
	API        string
	Widget     string
	Document   string
}

// LoadManifest reads widget.yaml if present.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", ManifestFile, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}

	return &m, nil
}

// Resolve loads widget.yaml (if present) and resolves defaults. The module
// path of a go.mod in dir, when there is one, supplies the default name
// and id.
func Resolve(dir string) (*Resolved, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	modulePath, err := modulePath(dir)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(m.Name)
	if name == "" {
		name = defaultName(modulePath, dir)
	}

	id := strings.TrimSpace(m.ID)
	if id == "" {
		id = defaultID(modulePath, name)
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	api := strings.TrimSpace(m.API)
	if api == "" {
		api = RuntimeAPI
	}
	if api, err = CheckAPI(api); err != nil {
		return nil, err
	}

	widget := strings.TrimSpace(m.Widget)
	if widget == "" {
		widget = "counter"
	}
	document := strings.TrimSpace(m.Document)
	if document == "" {
		document = id
	}

	return &Resolved{
		Root:       dir,
		ModulePath: modulePath,
		Name:       name,
		ID:         id,
		API:        api,
		Widget:     widget,
		Document:   document,
	}, nil
}

// CheckAPI validates a requested API version against RuntimeAPI and
// returns it in canonical form. The leading "v" is optional.
func CheckAPI(api string) (string, error) {
	v := api
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("api %q is not a semantic version", api)
	}
	v = semver.Canonical(v)
	if semver.Major(v) != semver.Major(RuntimeAPI) {
		return "", fmt.Errorf("api %s is not supported by runtime %s", v, RuntimeAPI)
	}
	if semver.Compare(semver.MajorMinor(v), semver.MajorMinor(RuntimeAPI)) > 0 {
		return "", fmt.Errorf("api %s requires a newer runtime (have %s)", v, RuntimeAPI)
	}
	return v, nil
}

// FindProjectRoot walks up from dir to the nearest directory holding a
// widget.yaml or a go.mod. When neither exists, dir itself is returned.
func FindProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for cur := dir; ; {
		for _, marker := range []string{ManifestFile, "go.mod"} {
			if _, err := os.Stat(filepath.Join(cur, marker)); err == nil {
				return cur, nil
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return dir, nil
		}
		cur = parent
	}
}

func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	return modfile.ModulePath(data), nil
}

func defaultName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modulePath != "" {
		modName, _, ok := module.SplitPathVersion(modulePath)
		if ok {
			parts := strings.Split(modName, "/")
			base = parts[len(parts)-1]
		}
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "widget"
	}
	return base
}

func defaultID(modulePath, name string) string {
	parts := strings.Split(modulePath, "/")
	if len(parts) < 2 || !strings.Contains(parts[0], ".") {
		return fmt.Sprintf("com.example.%s", sanitizeSegment(name, false))
	}

	host := strings.Split(parts[0], ".")
	for i, j := 0, len(host)-1; i < j; i, j = i+1, j-1 {
		host[i], host[j] = host[j], host[i]
	}

	segments := host
	for _, p := range parts[1:] {
		if p != "" {
			segments = append(segments, p)
		}
	}
	for i, segment := range segments {
		segments[i] = sanitizeSegment(segment, i > 0)
	}

	return strings.Join(segments, ".")
}

func sanitizeSegment(segment string, allowLeadingDigit bool) string {
	var out []rune
	for _, r := range strings.TrimSpace(segment) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		}
	}

	if len(out) == 0 {
		out = []rune("widget")
	}
	if !allowLeadingDigit && out[0] >= '0' && out[0] <= '9' {
		out = append([]rune{'w'}, out...)
	}

	return string(out)
}

func validateID(id string) error {
	if !strings.Contains(id, ".") {
		return fmt.Errorf("id must contain at least one '.' (got %q)", id)
	}
	for _, segment := range strings.Split(id, ".") {
		if segment == "" {
			return fmt.Errorf("id contains an empty segment (%q)", id)
		}
		if segment[0] >= '0' && segment[0] <= '9' {
			return fmt.Errorf("id segments cannot start with a digit (%q)", id)
		}
		for _, r := range segment {
			if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
				return fmt.Errorf("id contains invalid character %q in %q", r, id)
			}
		}
	}
	return nil
}
