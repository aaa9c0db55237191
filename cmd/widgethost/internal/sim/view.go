package sim

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-drift/widgetkit/pkg/menu"
	"github.com/go-drift/widgetkit/pkg/node"
	"github.com/go-drift/widgetkit/pkg/store"
)

var (
	colorAccent   = lipgloss.Color("#89b4fa")
	colorSubtext  = lipgloss.Color("#a6adc8")
	colorOverlay  = lipgloss.Color("#7f849c")
	colorSurface  = lipgloss.Color("#45475a")
	colorMantle   = lipgloss.Color("#181825")
	colorSuccess  = lipgloss.Color("#a6e3a1")
	colorError    = lipgloss.Color("#f38ba8")
	colorTextMain = lipgloss.Color("#cdd6f4")

	titleStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)

	headerBarStyle = lipgloss.NewStyle().
			Foreground(colorTextMain).
			Background(colorMantle).
			Padding(0, 2)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorSubtext).
			Background(colorSurface).
			Padding(0, 2)

	errorBarStyle = statusBarStyle.Foreground(colorError)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface).
			Padding(0, 1)

	focusedPaneStyle = paneStyle.BorderForeground(colorAccent)

	sectionStyle = lipgloss.NewStyle().Foreground(colorSubtext).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(colorOverlay)
	targetStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	syncedStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
)

func (m Model) View() string {
	var b strings.Builder

	sync := dimStyle.Render("diverged")
	if m.sim.Converged() {
		sync = syncedStyle.Render("converged")
	}
	b.WriteString(headerBarStyle.Render(titleStyle.Render(m.title) + "  " + sync))
	b.WriteString("\n")

	paneWidth := 0
	if m.width > 0 {
		paneWidth = max(24, m.width/2-4)
	}
	panes := make([]string, len(m.sim.Panes))
	for k, p := range m.sim.Panes {
		style := paneStyle
		if k == m.focus {
			style = focusedPaneStyle
		}
		if paneWidth > 0 {
			style = style.Width(paneWidth)
		}
		panes[k] = style.Render(m.renderPane(k, p))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panes...))
	b.WriteString("\n")

	if m.editing {
		b.WriteString(statusBarStyle.Render("edit> " + m.input + "_"))
	} else if m.statusErr {
		b.WriteString(errorBarStyle.Render(m.status))
	} else {
		b.WriteString(statusBarStyle.Render(m.status))
	}
	return b.String()
}

func (m Model) renderPane(k int, p *Pane) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.User))
	fmt.Fprintf(&b, "  %s\n\n", dimStyle.Render(fmt.Sprintf("%d pending", p.Endpoint.Pending())))

	b.WriteString(sectionStyle.Render("Tree"))
	b.WriteString("\n")
	targets := p.Clickables()
	if tree := p.Instance.Tree(); tree != nil {
		tree.Walk(func(path []int, n *node.Node) bool {
			b.WriteString(strings.Repeat("  ", len(path)))
			b.WriteString(outline(n))
			if j := slices.IndexFunc(targets, func(t []int) bool { return slices.Equal(t, path) }); j >= 0 {
				b.WriteString(" " + targetStyle.Render(fmt.Sprintf("[%d]", j+1)))
			}
			b.WriteString("\n")
			return true
		})
	} else {
		b.WriteString(dimStyle.Render("(not rendered)") + "\n")
	}

	b.WriteString("\n" + sectionStyle.Render("State") + "\n")
	snap := p.Instance.Bucket().Snapshot()
	if snap.Empty() {
		b.WriteString(dimStyle.Render("(empty)") + "\n")
	}
	for _, line := range StateLines(snap) {
		b.WriteString(line + "\n")
	}

	if items := p.MenuItems(); len(items) > 0 {
		b.WriteString("\n" + sectionStyle.Render("Menu") + "\n")
		for j, item := range items {
			prefix := "  "
			if k == m.focus && j == m.cursor {
				prefix = cursorStyle.Render("> ")
			}
			b.WriteString(prefix + menuLabel(item) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// StateLines renders an instance snapshot one record per line, in name
// order. Tombstones are shown as such.
func StateLines(snap store.InstanceSnapshot) []string {
	var lines []string
	for _, name := range sortedKeys(snap.State) {
		lines = append(lines, recordLine(name, snap.State[name]))
	}
	for _, mapName := range sortedKeys(snap.Maps) {
		entries := snap.Maps[mapName]
		for _, key := range sortedKeys(entries) {
			lines = append(lines, recordLine(mapName+"["+key+"]", entries[key]))
		}
	}
	return lines
}

func recordLine(name string, rec store.Record) string {
	value := string(rec.Value)
	if rec.Deleted {
		value = "(deleted)"
	}
	return fmt.Sprintf("%s = %s %s", name, value, dimStyle.Render("@"+rec.Stamp.String()))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func outline(n *node.Node) string {
	if n.Type == node.TypeRawText {
		return fmt.Sprintf("%q", n.Text)
	}
	var props []string
	for _, name := range sortedKeys(n.Props) {
		switch v := n.Props[name].(type) {
		case string, bool, int, int64, float64:
			props = append(props, fmt.Sprintf("%s=%v", name, v))
		}
	}
	if n.Key != "" {
		props = append([]string{"key=" + n.Key}, props...)
	}
	if len(props) == 0 {
		return string(n.Type)
	}
	return string(n.Type) + " " + dimStyle.Render(strings.Join(props, " "))
}

func menuLabel(item menu.Item) string {
	switch it := item.(type) {
	case menu.Action:
		return it.Tooltip
	case menu.Toggle:
		state := "off"
		if it.IsToggled {
			state = "on"
		}
		return it.Tooltip + ": " + state
	case menu.Dropdown:
		return it.Tooltip + ": " + it.SelectedOption
	case menu.ColorSelector:
		return it.Tooltip + ": " + it.SelectedOption
	case menu.Link:
		return it.Tooltip + " -> " + it.Href
	}
	return string(item.ItemType())
}
