package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-drift/widgetkit/pkg/core"
	"github.com/go-drift/widgetkit/pkg/menu"
	"github.com/go-drift/widgetkit/pkg/node"
)

const pixel = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

func widget(ctx *core.Context) *node.Node {
	count, setCount := core.UseSyncedState(ctx, "count", 2)
	core.UsePropertyMenu(ctx, []menu.Item{
		menu.Action{Base: menu.Base{Tooltip: "Reset", PropertyName: "reset"}},
	}, func(menu.PropertyEvent) { setCount.Set(0) })
	return node.H(node.TypeFrame, node.Props{"width": math.Inf(1), "onClick": func() {}},
		node.H(node.TypeText, nil, "n=", count),
		node.H(node.TypeImage, node.Props{"src": pixel}),
	)
}

func newServer(t *testing.T) (*Server, *core.Session) {
	t.Helper()
	s, err := core.NewSession(core.Options{Document: "doc", SessionID: "s1", Component: widget})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if _, err := s.Mount("w1", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	return New(s), s
}

func get(t *testing.T, h http.Handler, path string, v any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code == http.StatusOK && v != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
			t.Fatalf("GET %s: decode: %v\n%s", path, err, rec.Body.String())
		}
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)
	var health map[string]any
	if code := get(t, srv.Handler(), "/health", &health); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if health["status"] != "ok" || health["session"] != "s1" || health["document"] != "doc" {
		t.Errorf("health = %v", health)
	}
}

func TestInstances(t *testing.T) {
	srv, _ := newServer(t)
	var infos []InstanceInfo
	get(t, srv.Handler(), "/instances", &infos)
	if len(infos) != 1 {
		t.Fatalf("instances = %+v", infos)
	}
	got := infos[0]
	if got.ID != "w1" || got.Passes != 1 || !got.HasMenu || got.Nodes != 5 {
		t.Errorf("info = %+v", got)
	}
}

func TestTree(t *testing.T) {
	srv, _ := newServer(t)
	var tree struct {
		Type     string         `json:"type"`
		Props    map[string]any `json:"props"`
		Handlers []string       `json:"handlers"`
		Children []TreeNode     `json:"children"`
	}
	if code := get(t, srv.Handler(), "/instances/w1/tree", &tree); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if tree.Type != "frame" || len(tree.Children) != 2 {
		t.Fatalf("tree = %+v", tree)
	}
	if tree.Props["width"] != "Infinity" {
		t.Errorf("width = %v", tree.Props["width"])
	}
	if len(tree.Handlers) != 1 || tree.Handlers[0] != "onClick" {
		t.Errorf("handlers = %v", tree.Handlers)
	}
}

func TestScene(t *testing.T) {
	srv, _ := newServer(t)
	var resp struct {
		Nodes int       `json:"nodes"`
		Root  SceneNode `json:"root"`
	}
	if code := get(t, srv.Handler(), "/instances/w1/scene", &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resp.Nodes != 5 {
		t.Errorf("nodes = %d", resp.Nodes)
	}
	img := resp.Root.Children[1]
	if img.Intrinsic == nil || img.Intrinsic.Format != "gif" || img.Intrinsic.Width != 1 {
		t.Errorf("image = %+v", img)
	}
}

func TestStateAndMenu(t *testing.T) {
	srv, s := newServer(t)
	inst, _ := s.Instance("w1")
	if err := inst.HandlePropertyChange(map[string]any{"propertyName": "reset"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	var state struct {
		State map[string]struct {
			Value json.RawMessage `json:"value"`
		} `json:"state"`
	}
	get(t, srv.Handler(), "/instances/w1/state", &state)
	if string(state.State["count"].Value) != "0" {
		t.Errorf("state = %+v", state)
	}

	var desc struct {
		Items []map[string]any `json:"items"`
	}
	get(t, srv.Handler(), "/instances/w1/menu", &desc)
	if len(desc.Items) != 1 || desc.Items[0]["itemType"] != "action" {
		t.Errorf("menu = %+v", desc)
	}
}

func TestUnknownInstance(t *testing.T) {
	srv, _ := newServer(t)
	for _, path := range []string{"/instances/nope/tree", "/instances/nope/state", "/instances/nope/menu"} {
		if code := get(t, srv.Handler(), path, nil); code != http.StatusNotFound {
			t.Errorf("GET %s = %d", path, code)
		}
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d", rec.Code)
	}
}

func TestStartStop(t *testing.T) {
	srv, _ := newServer(t)
	addr, err := srv.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start debug server: %v", err)
	}
	defer srv.Stop()

	again, err := srv.Start("127.0.0.1:0")
	if err != nil || again != addr {
		t.Errorf("second Start = %q, %v; want %q", again, err, addr)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/health", addr))
	if err != nil {
		t.Fatalf("failed to reach health endpoint: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	srv.Stop()
	if _, err := client.Get(fmt.Sprintf("http://%s/health", addr)); err == nil {
		t.Error("server still running after Stop")
	}
}
