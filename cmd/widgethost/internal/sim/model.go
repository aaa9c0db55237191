package sim

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/go-drift/widgetkit/pkg/errors"
)

// Reporter collects runtime errors for display in the status bar. Install
// it with errors.SetHandler while the terminal UI owns the screen.
type Reporter struct {
	mu   sync.Mutex
	last string
	n    int
}

func (r *Reporter) set(msg string) {
	r.mu.Lock()
	r.last = msg
	r.n++
	r.mu.Unlock()
}

// HandleError implements errors.ErrorHandler.
func (r *Reporter) HandleError(err *errors.WidgetError) { r.set(err.Error()) }

// HandlePanic implements errors.ErrorHandler.
func (r *Reporter) HandlePanic(err *errors.PanicError) { r.set(err.Error()) }

// HandleRenderError implements errors.ErrorHandler.
func (r *Reporter) HandleRenderError(err *errors.RenderError) { r.set(err.Error()) }

// Last returns the latest reported error and the number reported so far.
func (r *Reporter) Last() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.n
}

type doneMsg struct {
	status string
	err    error
}

// Model is the bubbletea model of the simulator.
type Model struct {
	sim      *Simulator
	reporter *Reporter
	title    string

	focus   int
	cursor  int
	editing bool
	input   string

	status    string
	statusErr bool
	seen      int
	width     int
	height    int
}

// NewModel wraps a simulator. reporter may be nil.
func NewModel(s *Simulator, reporter *Reporter, title string) Model {
	return Model{
		sim:      s,
		reporter: reporter,
		title:    title,
		status:   "tab switch pane, 1-9 click, e edit, m/enter menu, d deliver, r reverse, x duplicate, s save, q quit",
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) setError(msg string) {
	m.status = msg
	m.statusErr = true
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case doneMsg:
		if msg.err != nil {
			m.setError(msg.err.Error())
		} else {
			m.status = msg.status
			m.statusErr = false
		}
		m.pollReporter()
		return m, nil
	case tea.KeyMsg:
		if m.editing {
			return m.updateEditing(msg)
		}
		return m.updateMain(msg)
	}
	return m, nil
}

func (m *Model) pollReporter() {
	if m.reporter == nil {
		return
	}
	if last, n := m.reporter.Last(); n > m.seen {
		m.seen = n
		m.setError(last)
	}
}

func (m Model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editing = false
		m.input = ""
		m.status = "Edit cancelled."
		m.statusErr = false
		return m, nil
	case tea.KeyEnter:
		m.editing = false
		text, pane := m.input, m.focus
		m.input = ""
		return m, m.run(func(ctx context.Context) (string, error) {
			return "Text saved.", m.sim.Edit(ctx, pane, text)
		})
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pane := m.focus
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.focus = 1 - m.focus
		m.cursor = 0
		return m, nil
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		k := int(key[0] - '1')
		return m, m.run(func(ctx context.Context) (string, error) {
			return fmt.Sprintf("Clicked %d.", k+1), m.sim.Click(ctx, pane, k)
		})
	case "e":
		if len(m.sim.Panes[pane].Inputs()) == 0 {
			m.setError("No input to edit.")
			return m, nil
		}
		m.editing = true
		m.input = ""
		m.status = "Editing: enter saves, esc cancels."
		m.statusErr = false
		return m, nil
	case "m", "down":
		if n := len(m.sim.Panes[pane].MenuItems()); n > 0 {
			m.cursor = (m.cursor + 1) % n
		}
		return m, nil
	case "M", "up":
		if n := len(m.sim.Panes[pane].MenuItems()); n > 0 {
			m.cursor = (m.cursor + n - 1) % n
		}
		return m, nil
	case "enter":
		k := m.cursor
		return m, m.run(func(ctx context.Context) (string, error) {
			return "Menu item applied.", m.sim.Activate(ctx, pane, k)
		})
	case "d":
		return m, m.run(func(ctx context.Context) (string, error) {
			n, err := m.sim.Deliver(ctx, pane)
			return fmt.Sprintf("Delivered %d envelope(s) to %s.", n, m.sim.Panes[pane].User), err
		})
	case "D":
		return m, m.run(func(ctx context.Context) (string, error) {
			total := 0
			for k := range m.sim.Panes {
				n, err := m.sim.Deliver(ctx, k)
				total += n
				if err != nil {
					return "", err
				}
			}
			return fmt.Sprintf("Delivered %d envelope(s).", total), nil
		})
	case "r":
		m.sim.Panes[pane].Endpoint.Reverse()
		m.status = "Reversed pending envelopes."
		m.statusErr = false
		return m, nil
	case "x":
		m.sim.Panes[pane].Endpoint.Duplicate()
		m.status = "Duplicated pending envelopes."
		m.statusErr = false
		return m, nil
	case "s":
		return m, m.run(func(ctx context.Context) (string, error) {
			n, err := m.sim.Save(ctx)
			return fmt.Sprintf("Saved %d record(s).", n), err
		})
	}
	return m, nil
}

func (m Model) run(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		status, err := fn(context.Background())
		return doneMsg{status: status, err: err}
	}
}
