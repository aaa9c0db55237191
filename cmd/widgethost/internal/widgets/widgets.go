// Package widgets holds the sample widgets shipped with the widget host.
package widgets

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-drift/widgetkit/pkg/core"
	"github.com/go-drift/widgetkit/pkg/menu"
	"github.com/go-drift/widgetkit/pkg/node"
)

// Lookup returns a sample widget by name.
func Lookup(name string) (core.Component, error) {
	c, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("unknown widget %q (have %s)", name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names lists the sample widgets.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var catalog = map[string]core.Component{
	"counter": Counter,
	"poll":    Poll,
	"notes":   Notes,
}

// Counter shows a shared click counter. The property menu resets it.
func Counter(ctx *core.Context) *node.Node {
	count, setCount := core.UseSyncedState(ctx, "count", 0)
	core.UsePropertyMenu(ctx, []menu.Item{
		menu.Action{Base: menu.Base{Tooltip: "Reset", PropertyName: "reset"}, Name: "Reset"},
	}, func(ev menu.PropertyEvent) {
		if ev.PropertyName == "reset" {
			setCount.Set(0)
		}
	})
	return node.H(node.TypeAutoLayout, node.Props{"direction": "horizontal", "spacing": 8},
		node.H(node.TypeText, node.Props{
			"onClick": func() { setCount.Update(func(n int) int { return n + 1 }) },
		}, "Count: ", count),
	)
}

// PollOptions are the choices of the Poll widget.
var PollOptions = []string{"yes", "no", "maybe"}

// PollQuestions are the questions offered by the Poll property menu.
var PollQuestions = []string{"Ship it?", "Lunch?", "Retro on Friday?"}

// Poll records one vote per user in a synced map. The voter is the "user"
// prop supplied by the host; clicking option k votes for PollOptions[k].
func Poll(ctx *core.Context) *node.Node {
	votes := core.UseSyncedMap[string](ctx, "votes")
	question, setQuestion := core.UseSyncedState(ctx, "question", PollQuestions[0])
	user, _ := ctx.Props()["user"].(string)

	questions := make([]menu.DropdownOption, 0, len(PollQuestions))
	for _, q := range PollQuestions {
		questions = append(questions, menu.DropdownOption{Option: q, Label: q})
	}
	if !slices.Contains(PollQuestions, question) {
		question = PollQuestions[0]
	}
	core.UsePropertyMenu(ctx, []menu.Item{
		menu.Dropdown{
			Base:           menu.Base{Tooltip: "Question", PropertyName: "question"},
			Options:        questions,
			SelectedOption: question,
			Direction:      "column",
			OptionType:     "label",
		},
		menu.Separator{},
		menu.Action{Base: menu.Base{Tooltip: "Clear votes", PropertyName: "clear"}},
	}, func(ev menu.PropertyEvent) {
		switch ev.PropertyName {
		case "question":
			if slices.Contains(PollQuestions, ev.Value()) {
				setQuestion.Set(ev.Value())
			}
		case "clear":
			for _, k := range votes.Keys() {
				votes.Delete(k)
			}
		}
	})

	tally := make(map[string]int)
	for _, e := range votes.Entries() {
		tally[e.Value]++
	}
	options := make([]any, 0, len(PollOptions))
	for _, opt := range PollOptions {
		options = append(options, node.H(node.TypeText, node.Props{
			"key":     opt,
			"onClick": func() { votes.Set(user, opt) },
		}, opt, ": ", tally[opt]))
	}
	return node.H(node.TypeAutoLayout, node.Props{"direction": "vertical"},
		node.H(node.TypeText, nil, question),
		node.H(node.TypeAutoLayout, node.Props{"direction": "horizontal"}, options),
	)
}

// Notes is a shared sticky note. The title is edited in place; the author
// list grows as sessions save text.
func Notes(ctx *core.Context) *node.Node {
	text, setText := core.UseSyncedStateFunc(ctx, "text", func() string { return "" })
	authors := core.UseSyncedMap[bool](ctx, "authors")
	user, _ := ctx.Props()["user"].(string)
	return node.H(node.TypeFrame, node.Props{"width": 240},
		node.H(node.TypeInput, node.Props{
			"value": text,
			"onTextEditEnd": func(ev core.TextEditEvent) {
				setText.Set(ev.Characters)
				if user != "" {
					authors.Set(user, true)
				}
			},
		}),
		node.H(node.TypeText, nil, "by ", strings.Join(authors.Keys(), ", ")),
	)
}
