package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-drift/widgetkit/cmd/widgethost/internal/sim"
	"github.com/go-drift/widgetkit/pkg/persist"
)

func init() {
	RegisterCommand(&Command{
		Name:  "inspect",
		Short: "List persisted documents or print one",
		Long: `Without arguments, list the documents in the store with their record
counts. With a document id, print the synced state of every instance in
that document, tombstones included.

Flags:
  --delete   Remove the document instead of printing it`,
		Usage: "widgethost inspect [document] [--delete]",
		Run:   runInspect,
	})
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func runInspect(args []string) error {
	var document string
	del := false
	for _, arg := range args {
		switch {
		case arg == "--delete":
			del = true
		case strings.HasPrefix(arg, "--"):
			return fmt.Errorf("unknown flag %s", arg)
		case document != "":
			return fmt.Errorf("unexpected argument %q", arg)
		default:
			document = arg
		}
	}
	if del && document == "" {
		return fmt.Errorf("--delete requires a document id")
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	st, err := openStore(settings)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	switch {
	case del:
		if err := st.Delete(ctx, document); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted %s.\n", document)
		return nil
	case document != "":
		return printDocument(ctx, st, document)
	default:
		return listDocuments(ctx, st)
	}
}

func listDocuments(ctx context.Context, st *persist.SQLiteStore) error {
	docs, err := st.Documents(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(stdout, mutedStyle.Render("No documents."))
		return nil
	}
	width := len("DOCUMENT")
	for _, d := range docs {
		width = max(width, len(d.ID))
	}
	fmt.Fprintln(stdout, headingStyle.Render(fmt.Sprintf("%-*s  %7s  %s", width, "DOCUMENT", "RECORDS", "UPDATED")))
	for _, d := range docs {
		fmt.Fprintf(stdout, "%-*s  %7d  %s\n", width, d.ID, d.Records, mutedStyle.Render(d.UpdatedAt.Local().Format("2006-01-02 15:04:05")))
	}
	return nil
}

func printDocument(ctx context.Context, st *persist.SQLiteStore, document string) error {
	snap, err := st.Load(ctx, document)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, headingStyle.Render(document))
	if len(snap.Instances) == 0 {
		fmt.Fprintln(stdout, mutedStyle.Render("No instances."))
		return nil
	}
	ids := make([]string, 0, len(snap.Instances))
	for id := range snap.Instances {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		body := headingStyle.Render(id) + "\n" + strings.Join(sim.StateLines(snap.Instances[id]), "\n")
		fmt.Fprintln(stdout, boxStyle.Render(body))
	}
	return nil
}
