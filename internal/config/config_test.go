package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolve_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module github.com/acme/team-poll/v2\n\ngo 1.24\n")

	r, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Name != "team-poll" {
		t.Errorf("Name = %q", r.Name)
	}
	if r.ID != "com.github.acme.teampoll.v2" {
		t.Errorf("ID = %q", r.ID)
	}
	if r.API != RuntimeAPI {
		t.Errorf("API = %q", r.API)
	}
	if r.Widget != "counter" || r.Document != r.ID {
		t.Errorf("Widget = %q, Document = %q", r.Widget, r.Document)
	}
}

func TestResolve_NoModule(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Sticky Notes")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	r, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.ID != "com.example.stickynotes" {
		t.Errorf("ID = %q", r.ID)
	}
}

func TestResolve_Manifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestFile, `
name: Team Poll
id: com.acme.poll
api: "1.1"
widget: poll
document: standup
`)
	r, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.Name != "Team Poll" || r.ID != "com.acme.poll" || r.API != "v1.1.0" || r.Widget != "poll" || r.Document != "standup" {
		t.Errorf("resolved = %+v", r)
	}
}

func TestResolve_Errors(t *testing.T) {
	tests := map[string]struct {
		manifest string
		want     string
	}{
		"bad yaml":       {"name: [", "failed to parse"},
		"id no dot":      {"id: poll", "at least one '.'"},
		"id digit":       {"id: com.1poll", "cannot start with a digit"},
		"id upper":       {"id: com.Poll", "invalid character"},
		"api invalid":    {"api: latest", "not a semantic version"},
		"api major":      {"api: v2.0.0", "not supported"},
		"api newer":      {"api: v1.9.0", "newer runtime"},
		"id empty piece": {"id: com..poll", "empty segment"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, ManifestFile, tt.manifest)
			_, err := Resolve(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Resolve error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ManifestFile, "widget: poll\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot: %v", err)
	}
	if want, _ := filepath.Abs(root); got != want {
		t.Errorf("FindProjectRoot = %q, want %q", got, want)
	}
}

func TestCheckAPI(t *testing.T) {
	for in, want := range map[string]string{
		"v1":     "v1.0.0",
		"1.2.0":  "v1.2.0",
		"v1.0.3": "v1.0.3",
		"v1.2.9": "v1.2.9",
	} {
		got, err := CheckAPI(in)
		if err != nil || got != want {
			t.Errorf("CheckAPI(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	t.Setenv("WIDGETKIT_CONFIG", "")
	t.Setenv("XDG_DATA_HOME", "/data")
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Storage.Path != filepath.Join("/data", "widgetkit", "widgets.db") {
		t.Errorf("Storage.Path = %q", s.Storage.Path)
	}
	if s.Render.MaxPasses != 32 || s.Render.Concurrency != 4 {
		t.Errorf("Render = %+v", s.Render)
	}
	if s.Debug.Addr != "" || s.Session.Name != "" {
		t.Errorf("Debug = %+v, Session = %+v", s.Debug, s.Session)
	}
}

func TestLoadSettings_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widgethost.yaml")
	writeFile(t, dir, "widgethost.yaml", `
storage:
  path: /tmp/board.db
render:
  max_passes: 8
debug:
  addr: 127.0.0.1:7070
`)
	t.Setenv("WIDGETKIT_RENDER_CONCURRENCY", "2")
	t.Setenv("WIDGETKIT_SESSION_NAME", "alice")

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Storage.Path != "/tmp/board.db" || s.Render.MaxPasses != 8 || s.Debug.Addr != "127.0.0.1:7070" {
		t.Errorf("file values not applied: %+v", s)
	}
	if s.Render.Concurrency != 2 || s.Session.Name != "alice" {
		t.Errorf("env overrides not applied: %+v", s)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	t.Setenv("WIDGETKIT_RENDER_MAX_PASSES", "0")
	if _, err := LoadSettings(""); err == nil || !strings.Contains(err.Error(), "max_passes") {
		t.Errorf("LoadSettings error = %v", err)
	}
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing explicit settings file accepted")
	}
}

func TestSaveSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "widgethost.yaml")
	want := Settings{
		Storage: StorageSettings{Path: "/var/lib/widgets.db"},
		Render:  RenderSettings{MaxPasses: 5, Concurrency: 3},
		Debug:   DebugSettings{Addr: ":0"},
		Session: SessionSettings{Name: "bob"},
	}
	if err := SaveSettings(path, want); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}
