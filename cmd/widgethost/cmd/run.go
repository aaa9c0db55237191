package cmd

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/go-drift/widgetkit/cmd/widgethost/internal/sim"
	"github.com/go-drift/widgetkit/pkg/errors"
)

func init() {
	RegisterCommand(&Command{
		Name:  "run",
		Short: "Simulate two sessions of a widget in the terminal",
		Long: `Open two sessions of the same document side by side. Writes made in
one session are queued for the other until delivered, so concurrent
edits and late, reordered or duplicated traffic can be replayed by hand.

The widget defaults to the "widget" entry of widget.yaml. Both sessions
are hydrated from the document store and "s" saves them back.

Keys:
  tab        Switch pane
  1-9        Click the numbered node
  e          Edit the first input (enter saves, esc cancels)
  m, M       Move the menu cursor
  enter      Apply the selected menu item
  d, D       Deliver queued writes to this pane, to both panes
  r, x       Reverse, duplicate this pane's queue
  s          Save both sessions
  q          Quit

Flags:
  --document ID   Document to open (default: manifest document)
  --users A,B     Session names (default: alice,bob)
  --no-store      Do not load or save the document`,
		Usage: "widgethost run [widget] [--document ID] [--users A,B] [--no-store]",
		Run:   runRun,
	})
}

type runOptions struct {
	hostOptions
	users [2]string
}

func parseRunArgs(args []string) (runOptions, error) {
	opts := runOptions{users: [2]string{"alice", "bob"}}
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "--no-store":
			opts.noStore = true
		case "--document":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--document requires an id")
			}
			opts.document = args[i+1]
			i++
		case "--users":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--users requires two names")
			}
			names := strings.Split(args[i+1], ",")
			if len(names) != 2 || names[0] == "" || names[1] == "" || names[0] == names[1] {
				return opts, fmt.Errorf("--users requires two distinct names, got %q", args[i+1])
			}
			opts.users = [2]string{names[0], names[1]}
			i++
		default:
			if strings.HasPrefix(arg, "--") {
				return opts, fmt.Errorf("unknown flag %s", arg)
			}
			if opts.widget != "" {
				return opts, fmt.Errorf("unexpected argument %q", arg)
			}
			opts.widget = arg
		}
	}
	return opts, nil
}

func runRun(args []string) error {
	opts, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	h, err := loadHost(opts.hostOptions)
	if err != nil {
		return err
	}
	defer h.Close()

	// The terminal belongs to bubbletea; runtime errors go to the status bar.
	reporter := &sim.Reporter{}
	errors.SetHandler(reporter)
	defer errors.SetHandler(nil)

	s, err := sim.New(context.Background(), sim.Options{
		Document:    h.document,
		Component:   h.render,
		Users:       opts.users,
		Store:       h.store,
		MaxPasses:   h.settings.Render.MaxPasses,
		Concurrency: h.settings.Render.Concurrency,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	title := fmt.Sprintf("%s · %s", h.widget, h.document)
	_, err = tea.NewProgram(sim.NewModel(s, reporter, title), tea.WithAltScreen()).Run()
	return err
}
