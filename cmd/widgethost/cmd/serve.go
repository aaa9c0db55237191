package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-drift/widgetkit/pkg/core"
	"github.com/go-drift/widgetkit/pkg/debug"
	"github.com/go-drift/widgetkit/pkg/errors"
	"github.com/go-drift/widgetkit/pkg/node"
	"github.com/go-drift/widgetkit/pkg/persist"
)

func init() {
	RegisterCommand(&Command{
		Name:  "serve",
		Short: "Serve a headless session with the debug server",
		Long: `Open one session of a document, mount the widget and keep it rendering
until interrupted. The debug server exposes the instance trees, scene
graphs, synced state and property menus as JSON.

The session is hydrated from the document store and saved every
--autosave interval and on exit.

Flags:
  --document ID      Document to open (default: manifest document)
  --addr ADDR        Debug server address (default: debug.addr setting or 127.0.0.1:9229)
  --autosave DUR     Save interval, 0 disables periodic saves (default: 5s)
  --no-store         Do not load or save the document`,
		Usage: "widgethost serve [widget] [--document ID] [--addr ADDR] [--autosave DUR] [--no-store]",
		Run:   runServe,
	})
}

const defaultDebugAddr = "127.0.0.1:9229"

type serveOptions struct {
	hostOptions
	addr     string
	autosave time.Duration
}

func parseServeArgs(args []string) (serveOptions, error) {
	opts := serveOptions{autosave: 5 * time.Second}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "--") && arg != "--no-store" && i+1 >= len(args) {
			return opts, fmt.Errorf("%s requires a value", arg)
		}
		switch arg {
		case "--no-store":
			opts.noStore = true
		case "--document":
			opts.document = args[i+1]
			i++
		case "--addr":
			opts.addr = args[i+1]
			i++
		case "--autosave":
			d, err := time.ParseDuration(args[i+1])
			if err != nil || d < 0 {
				return opts, fmt.Errorf("invalid --autosave %q", args[i+1])
			}
			opts.autosave = d
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

func runServe(args []string) error {
	opts, err := parseServeArgs(args)
	if err != nil {
		return err
	}
	h, err := loadHost(opts.hostOptions)
	if err != nil {
		return err
	}
	defer h.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serveSession(ctx, h, opts, nil)
}

// serveSession runs until ctx is done. ready, when set, receives the bound
// debug address once the session is mounted.
func serveSession(ctx context.Context, h *host, opts serveOptions, ready func(addr string)) error {
	coreOpts := core.Options{
		Document:    h.document,
		SessionID:   h.settings.Session.Name,
		Component:   h.render,
		MaxPasses:   h.settings.Render.MaxPasses,
		Concurrency: h.settings.Render.Concurrency,
	}
	if h.store != nil {
		snap, err := h.store.Load(ctx, h.document)
		switch {
		case err == nil:
			coreOpts.Snapshot = &snap
		case !errors.Is(err, persist.ErrUnknownDocument):
			return err
		}
	}

	session, err := core.NewSession(coreOpts)
	if err != nil {
		return err
	}
	defer session.Close()
	if _, err := session.Mount("widget", node.Props{"user": session.ID()}); err != nil {
		return err
	}
	if err := session.Flush(ctx); err != nil {
		return err
	}

	addr := opts.addr
	if addr == "" {
		addr = h.settings.Debug.Addr
	}
	if addr == "" {
		addr = defaultDebugAddr
	}
	srv := debug.New(session)
	bound, err := srv.Start(addr)
	if err != nil {
		return err
	}
	defer srv.Stop()

	fmt.Fprintf(stdout, "Serving %s (document %s, session %s)\n", h.widget, h.document, session.ID())
	fmt.Fprintf(stdout, "Debug server: http://%s/instances\n", bound)
	if ready != nil {
		ready(bound)
	}

	save := func(ctx context.Context) error {
		if h.store == nil {
			return nil
		}
		_, err := h.store.Save(ctx, session.Snapshot())
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	if opts.autosave > 0 && h.store != nil {
		g.Go(func() error {
			ticker := time.NewTicker(opts.autosave)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := save(gctx); err != nil {
						errors.Report(&errors.WidgetError{Op: "widgethost.autosave", Kind: errors.KindStorage, Err: err})
					}
				}
			}
		})
	}
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if serr := save(context.Background()); serr != nil {
		return errors.Join(err, serr)
	}
	fmt.Fprintln(stdout, "Session saved.")
	return err
}
