// Package sim runs two sessions of one document side by side over an
// in-memory hub with manual delivery, so that concurrent edits, delayed
// and reordered traffic can be explored by hand.
package sim

import (
	"context"
	"fmt"

	"github.com/go-drift/widgetkit/pkg/core"
	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/menu"
	"github.com/go-drift/widgetkit/pkg/node"
	"github.com/go-drift/widgetkit/pkg/persist"
	"github.com/go-drift/widgetkit/pkg/replication"
	"github.com/go-drift/widgetkit/pkg/store"
)

// Options configures a Simulator.
type Options struct {
	Document  string
	Instance  string
	Component core.Component
	// Users names the two sessions. They are also passed to the widget as
	// the "user" prop.
	Users [2]string
	// Store, when set, hydrates both sessions and receives Save.
	Store       *persist.SQLiteStore
	MaxPasses   int
	Concurrency int
}

// Pane is one simulated client.
type Pane struct {
	User     string
	Session  *core.Session
	Endpoint *replication.Endpoint
	Instance *core.Instance
}

// Simulator holds two panes connected through a manual hub.
type Simulator struct {
	Panes    [2]*Pane
	hub      *replication.Hub
	store    *persist.SQLiteStore
	document string
}

// New opens both sessions and mounts the widget in each.
func New(ctx context.Context, opts Options) (*Simulator, error) {
	if opts.Component == nil {
		return nil, errors.Config("sim.New", errors.New("no component"))
	}
	if opts.Instance == "" {
		opts.Instance = "widget"
	}
	for k, user := range opts.Users {
		if user == "" {
			opts.Users[k] = fmt.Sprintf("user%d", k+1)
		}
	}

	var snapshot *store.DocumentSnapshot
	if opts.Store != nil {
		snap, err := opts.Store.Load(ctx, opts.Document)
		switch {
		case err == nil:
			snapshot = &snap
		case errors.Is(err, persist.ErrUnknownDocument):
		default:
			return nil, err
		}
	}

	sim := &Simulator{
		hub:      replication.NewHub(replication.WithManualDelivery()),
		store:    opts.Store,
		document: opts.Document,
	}
	for k, user := range opts.Users {
		ep := sim.hub.Connect(user)
		s, err := core.NewSession(core.Options{
			Document:    opts.Document,
			SessionID:   user,
			Component:   opts.Component,
			Channel:     ep,
			Snapshot:    snapshot,
			MaxPasses:   opts.MaxPasses,
			Concurrency: opts.Concurrency,
		})
		if err != nil {
			sim.Close()
			return nil, err
		}
		inst, err := s.Mount(opts.Instance, node.Props{"user": user})
		if err != nil {
			s.Close()
			sim.Close()
			return nil, err
		}
		sim.Panes[k] = &Pane{User: user, Session: s, Endpoint: ep, Instance: inst}
	}
	return sim, sim.Flush(ctx)
}

// Flush renders and publishes both panes.
func (s *Simulator) Flush(ctx context.Context) error {
	var errs []error
	for _, p := range s.Panes {
		if err := p.Session.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.User, err))
		}
	}
	return errors.Join(errs...)
}

// Clickables returns the paths of the nodes of a pane that handle clicks,
// in tree order.
func (p *Pane) Clickables() [][]int {
	var out [][]int
	tree := p.Instance.Tree()
	if tree == nil {
		return nil
	}
	tree.Walk(func(path []int, n *node.Node) bool {
		if n.Handler("onClick") != nil {
			out = append(out, append([]int(nil), path...))
		}
		return true
	})
	return out
}

// Inputs returns the paths of the input nodes of a pane, in tree order.
func (p *Pane) Inputs() [][]int {
	var out [][]int
	tree := p.Instance.Tree()
	if tree == nil {
		return nil
	}
	tree.Walk(func(path []int, n *node.Node) bool {
		if n.Type == node.TypeInput {
			out = append(out, append([]int(nil), path...))
		}
		return true
	})
	return out
}

// Click clicks the k-th clickable node of a pane and flushes it.
func (s *Simulator) Click(ctx context.Context, pane, k int) error {
	p := s.Panes[pane]
	targets := p.Clickables()
	if k < 0 || k >= len(targets) {
		return fmt.Errorf("%s has no clickable node %d", p.User, k+1)
	}
	if err := p.Instance.HandleClick(targets[k], core.ClickEvent{}); err != nil {
		return err
	}
	return p.Session.Flush(ctx)
}

// Edit ends a text edit on the first input of a pane and flushes it.
func (s *Simulator) Edit(ctx context.Context, pane int, text string) error {
	p := s.Panes[pane]
	inputs := p.Inputs()
	if len(inputs) == 0 {
		return fmt.Errorf("%s has no input", p.User)
	}
	if err := p.Instance.HandleTextEditEnd(inputs[0], core.TextEditEvent{Characters: text}); err != nil {
		return err
	}
	return p.Session.Flush(ctx)
}

// MenuItems returns the property menu items of a pane, separators excluded.
func (p *Pane) MenuItems() []menu.Item {
	desc := p.Instance.Menu()
	if desc == nil {
		return nil
	}
	var out []menu.Item
	for _, item := range desc.Items {
		if _, ok := item.(menu.Separator); !ok {
			out = append(out, item)
		}
	}
	return out
}

// Activate interacts with the k-th property menu item of a pane the way a
// host would: actions fire, toggles flip and selectors advance to the next
// option.
func (s *Simulator) Activate(ctx context.Context, pane, k int) error {
	p := s.Panes[pane]
	items := p.MenuItems()
	if k < 0 || k >= len(items) {
		return fmt.Errorf("%s has no menu item %d", p.User, k+1)
	}
	ev := menu.PropertyEvent{PropertyName: menu.PropertyName(items[k])}
	switch item := items[k].(type) {
	case menu.Toggle:
		v := fmt.Sprint(!item.IsToggled)
		ev.PropertyValue = &v
	case menu.Dropdown:
		opts := make([]string, len(item.Options))
		for j, o := range item.Options {
			opts[j] = o.Option
		}
		v := next(opts, item.SelectedOption)
		ev.PropertyValue = &v
	case menu.ColorSelector:
		opts := make([]string, len(item.Options))
		for j, o := range item.Options {
			opts[j] = o.Option
		}
		v := next(opts, item.SelectedOption)
		ev.PropertyValue = &v
	}
	if err := p.Instance.HandlePropertyChange(ev); err != nil {
		return err
	}
	return p.Session.Flush(ctx)
}

func next(options []string, current string) string {
	for j, o := range options {
		if o == current {
			return options[(j+1)%len(options)]
		}
	}
	return options[0]
}

// Deliver hands every envelope queued for a pane to its session and
// renders it.
func (s *Simulator) Deliver(ctx context.Context, pane int) (int, error) {
	p := s.Panes[pane]
	n, err := p.Endpoint.DeliverAll()
	if err != nil {
		return n, err
	}
	return n, p.Session.Flush(ctx)
}

// Save merges both panes' snapshots into the store.
func (s *Simulator) Save(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, errors.New("no store configured")
	}
	total := 0
	for _, p := range s.Panes {
		n, err := s.store.Save(ctx, p.Session.Snapshot())
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Converged reports whether both panes hold the same synced state and
// committed tree.
func (s *Simulator) Converged() bool {
	a, b := s.Panes[0], s.Panes[1]
	if !node.Equal(a.Instance.Tree(), b.Instance.Tree()) {
		return false
	}
	sa, sb := a.Session.Snapshot(), b.Session.Snapshot()
	if len(sa.Instances) != len(sb.Instances) {
		return false
	}
	for id, ia := range sa.Instances {
		ib, ok := sb.Instances[id]
		if !ok || !sameRecords(ia.State, ib.State) || len(ia.Maps) != len(ib.Maps) {
			return false
		}
		for name, entries := range ia.Maps {
			if !sameRecords(entries, ib.Maps[name]) {
				return false
			}
		}
	}
	return true
}

func sameRecords(a, b map[string]store.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for k, ra := range a {
		if rb, ok := b[k]; !ok || !ra.Equal(rb) {
			return false
		}
	}
	return true
}

// Close closes both sessions.
func (s *Simulator) Close() {
	for _, p := range s.Panes {
		if p != nil {
			p.Session.Close()
			p.Endpoint.Close()
		}
	}
}
