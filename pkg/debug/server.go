// Package debug serves a read-only HTTP view of a running session: the
// mounted instances, their committed trees, retained scenes, synced state
// and property menus.
package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-drift/widgetkit/pkg/core"
	"github.com/go-drift/widgetkit/pkg/node"
	"github.com/go-drift/widgetkit/pkg/scene"
)

// maxTreeDepth limits recursion depth to prevent stack overflow from malformed trees.
const maxTreeDepth = 500

// Server exposes a session over HTTP.
type Server struct {
	session *core.Session

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a server for session. It does not listen until Start.
func New(session *core.Session) *Server {
	return &Server{session: session}
}

// TreeNode is a node of a serialized committed tree.
type TreeNode struct {
	Type     string         `json:"type"`
	Key      string         `json:"key,omitempty"`
	Text     string         `json:"text,omitempty"`
	Props    map[string]any `json:"props,omitempty"`
	Handlers []string       `json:"handlers,omitempty"`
	Children []TreeNode     `json:"children,omitempty"`
}

// SceneNode is a node of a serialized retained scene.
type SceneNode struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Key       string         `json:"key,omitempty"`
	Text      string         `json:"text,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
	Intrinsic *Intrinsic     `json:"intrinsic,omitempty"`
	Children  []SceneNode    `json:"children,omitempty"`
}

// Intrinsic is the measured size of an image or svg node.
type Intrinsic struct {
	Format string    `json:"format"`
	Width  SafeFloat `json:"width"`
	Height SafeFloat `json:"height"`
}

// InstanceInfo summarizes one mounted instance.
type InstanceInfo struct {
	ID           string `json:"id"`
	Passes       int    `json:"passes"`
	Nodes        int    `json:"nodes"`
	Busy         bool   `json:"busy"`
	PendingTasks int    `json:"pendingTasks"`
	Scheduled    bool   `json:"scheduled"`
	HasMenu      bool   `json:"hasMenu"`
	LastError    string `json:"lastError,omitempty"`
}

// SafeFloat wraps a float64 to handle Inf/NaN in JSON encoding.
type SafeFloat float64

func (f SafeFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 1) {
		return []byte(`"Infinity"`), nil
	}
	if math.IsInf(v, -1) {
		return []byte(`"-Infinity"`), nil
	}
	if math.IsNaN(v) {
		return []byte(`"NaN"`), nil
	}
	return json.Marshal(v)
}

// Handler returns the HTTP handler serving the debug endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /instances", s.handleInstances)
	mux.HandleFunc("GET /instances/{id}/tree", s.handleTree)
	mux.HandleFunc("GET /instances/{id}/scene", s.handleScene)
	mux.HandleFunc("GET /instances/{id}/state", s.handleState)
	mux.HandleFunc("GET /instances/{id}/menu", s.handleMenu)
	return mux
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when the port is 0.
func (s *Server) Start(addr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return s.listener.Addr().String(), nil
	}

	// Bind listener first to fail fast on port conflicts
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("debug server listen: %w", err)
	}

	server := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	s.server = server
	s.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			// Server failed - clear state so it can be restarted
			s.mu.Lock()
			s.server = nil
			s.listener = nil
			s.mu.Unlock()
			fmt.Printf("debug server error: %v\n", err)
		}
	}()

	return listener.Addr().String(), nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		Status    string `json:"status"`
		Session   string `json:"session"`
		Document  string `json:"document"`
		Instances int    `json:"instances"`
		Pending   int    `json:"pendingWrites"`
	}{
		Status:    "ok",
		Session:   s.session.ID(),
		Document:  s.session.Document(),
		Instances: len(s.session.Instances()),
		Pending:   s.session.Pending(),
	})
}

func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	instances := s.session.Instances()
	out := make([]InstanceInfo, 0, len(instances))
	for _, inst := range instances {
		info := InstanceInfo{
			ID:           inst.ID(),
			Passes:       inst.Passes(),
			Busy:         inst.Busy(),
			PendingTasks: inst.PendingTasks(),
			Scheduled:    s.session.Scheduler().Scheduled(inst),
			HasMenu:      inst.Menu() != nil,
		}
		if tree := inst.Tree(); tree != nil {
			info.Nodes = tree.Count()
		}
		if err := inst.LastError(); err != nil {
			info.LastError = err.Error()
		}
		out = append(out, info)
	}
	writeJSON(w, out)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}
	// Recover from panics during serialization
	defer func() {
		if rec := recover(); rec != nil {
			http.Error(w, fmt.Sprintf("panic: %v", rec), http.StatusInternalServerError)
		}
	}()
	root := inst.Tree()
	if root == nil {
		http.Error(w, "no committed tree", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, serializeTree(root, 0))
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}
	graph, ok := inst.Sink().(*scene.Graph)
	if !ok {
		http.Error(w, fmt.Sprintf("sink %T has no retained scene", inst.Sink()), http.StatusNotImplemented)
		return
	}
	root := graph.Root()
	if root == nil {
		http.Error(w, "empty scene", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, struct {
		Applied int       `json:"applied"`
		Nodes   int       `json:"nodes"`
		Root    SceneNode `json:"root"`
	}{graph.Applied(), graph.Len(), serializeScene(root, 0)})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}
	writeJSON(w, inst.Bucket().Snapshot())
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.instance(w, r)
	if !ok {
		return
	}
	desc := inst.Menu()
	if desc == nil {
		http.Error(w, "no property menu", http.StatusNotFound)
		return
	}
	writeJSON(w, desc)
}

func (s *Server) instance(w http.ResponseWriter, r *http.Request) (*core.Instance, bool) {
	id := r.PathValue("id")
	inst, ok := s.session.Instance(id)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown instance %q", id), http.StatusNotFound)
	}
	return inst, ok
}

func serializeTree(n *node.Node, depth int) TreeNode {
	out := TreeNode{
		Type:  string(n.Type),
		Key:   n.Key,
		Text:  n.Text,
		Props: safeProps(n.Props),
	}
	if len(n.Handlers) > 0 {
		out.Handlers = slices.Sorted(maps.Keys(n.Handlers))
	}
	if depth >= maxTreeDepth {
		return out
	}
	for _, child := range n.Children {
		out.Children = append(out.Children, serializeTree(child, depth+1))
	}
	return out
}

func serializeScene(n *scene.Node, depth int) SceneNode {
	out := SceneNode{
		ID:    n.ID,
		Type:  string(n.Type),
		Key:   n.Key,
		Text:  n.Text,
		Props: safeProps(n.Props),
	}
	if n.Intrinsic != nil {
		out.Intrinsic = &Intrinsic{
			Format: n.Intrinsic.Format,
			Width:  SafeFloat(n.Intrinsic.Width),
			Height: SafeFloat(n.Intrinsic.Height),
		}
	}
	if depth >= maxTreeDepth {
		return out
	}
	for _, child := range n.Children {
		out.Children = append(out.Children, serializeScene(child, depth+1))
	}
	return out
}

// safeProps replaces values encoding/json rejects so that one bad prop
// does not hide the whole tree.
func safeProps(props node.Props) map[string]any {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any, len(props))
	for name, v := range props {
		out[name] = safeValue(v)
	}
	return out
}

func safeValue(v any) any {
	switch x := v.(type) {
	case float64:
		return SafeFloat(x)
	case float32:
		return SafeFloat(x)
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%T", v)
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	// Encode to buffer first so we can catch errors
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
