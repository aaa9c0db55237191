package reconcile

import (
	"fmt"

	"github.com/go-drift/widgetkit/pkg/node"
)

// Sink receives committed patch lists. The host scene graph implements it.
type Sink interface {
	Apply(patches []Patch) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(patches []Patch) error

// Apply calls f(patches).
func (f SinkFunc) Apply(patches []Patch) error {
	return f(patches)
}

// Reconciler holds the most recently committed tree of one widget instance.
// It is not safe for concurrent use; the owning instance serializes access.
type Reconciler struct {
	tree    *node.Node
	sink    Sink
	commits int
}

// New creates a Reconciler that commits to sink. A nil sink discards patches.
func New(sink Sink) *Reconciler {
	return &Reconciler{sink: sink}
}

// Tree returns the committed tree.
func (r *Reconciler) Tree() *node.Node {
	return r.tree
}

// Sink returns the sink patches are committed to.
func (r *Reconciler) Sink() Sink {
	return r.sink
}

// Commits returns the number of successful commits.
func (r *Reconciler) Commits() int {
	return r.commits
}

// Commit diffs tree against the committed tree and applies the patches.
// If the sink rejects the patches the previous tree stays committed.
func (r *Reconciler) Commit(tree *node.Node) ([]Patch, error) {
	patches := Diff(r.tree, tree)
	if len(patches) > 0 && r.sink != nil {
		if err := r.sink.Apply(patches); err != nil {
			return nil, fmt.Errorf("apply %d patches: %w", len(patches), err)
		}
	}
	r.tree = tree
	r.commits++
	return patches, nil
}

// Reset forgets the committed tree and clears the sink.
func (r *Reconciler) Reset() error {
	if r.tree == nil {
		return nil
	}
	_, err := r.Commit(nil)
	return err
}
