package cmd

import (
	"fmt"

	"github.com/go-drift/widgetkit/cmd/widgethost/internal/widgets"
)

func init() {
	RegisterCommand(&Command{
		Name:  "check",
		Short: "Validate widget.yaml and the host settings",
		Long: `Resolve widget.yaml in the nearest project directory, apply defaults
and print the result. The API version must be compatible with this
runtime and the widget must name a built-in sample.

The settings file and WIDGETKIT_* environment overrides are validated
as well.`,
		Usage: "widgethost check",
		Run:   runCheck,
	})
}

func runCheck(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument %q", args[0])
	}
	cfg, err := project()
	if err != nil {
		return err
	}
	if _, err := widgets.Lookup(cfg.Widget); err != nil {
		return err
	}
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Project:   %s\n", cfg.Root)
	if cfg.ModulePath != "" {
		fmt.Fprintf(stdout, "Module:    %s\n", cfg.ModulePath)
	}
	fmt.Fprintf(stdout, "Name:      %s\n", cfg.Name)
	fmt.Fprintf(stdout, "ID:        %s\n", cfg.ID)
	fmt.Fprintf(stdout, "API:       %s\n", cfg.API)
	fmt.Fprintf(stdout, "Widget:    %s\n", cfg.Widget)
	fmt.Fprintf(stdout, "Document:  %s\n", cfg.Document)
	fmt.Fprintf(stdout, "Storage:   %s\n", settings.Storage.Path)
	fmt.Fprintf(stdout, "Render:    %d passes, %d concurrent\n", settings.Render.MaxPasses, settings.Render.Concurrency)
	fmt.Fprintln(stdout, "OK")
	return nil
}
