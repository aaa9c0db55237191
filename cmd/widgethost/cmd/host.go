package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-drift/widgetkit/cmd/widgethost/internal/widgets"
	"github.com/go-drift/widgetkit/internal/config"
	"github.com/go-drift/widgetkit/pkg/core"
	"github.com/go-drift/widgetkit/pkg/persist"
)

// host bundles what every runtime command loads: settings, the project
// manifest, the selected widget and the document store.
type host struct {
	settings config.Settings
	project  *config.Resolved
	widget   string
	document string
	render   core.Component
	store    *persist.SQLiteStore
}

type hostOptions struct {
	widget   string
	document string
	noStore  bool
}

func loadHost(opts hostOptions) (*host, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	project, err := project()
	if err != nil {
		return nil, err
	}

	h := &host{settings: settings, project: project, widget: opts.widget, document: opts.document}
	if h.widget == "" {
		h.widget = project.Widget
	}
	if h.document == "" {
		h.document = project.Document
	}
	if h.render, err = widgets.Lookup(h.widget); err != nil {
		return nil, err
	}

	if !opts.noStore {
		if h.store, err = openStore(settings); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func loadSettings() (config.Settings, error) {
	return config.LoadSettings(settingsPath)
}

func openStore(settings config.Settings) (*persist.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(settings.Storage.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return persist.NewSQLiteStore(settings.Storage.Path)
}

func (h *host) Close() {
	if h.store != nil {
		h.store.Close()
	}
}
