// Package core runs widget instances: it schedules render passes, evaluates
// hooks, commits trees through the reconciler and replicates synced state.
//
// # Components
//
// A widget is a Component, a function from a render Context to a virtual
// node tree. The process declares its widget once:
//
//	func counter(ctx *core.Context) *node.Node {
//	    count, setCount := core.UseSyncedState(ctx, "count", 0)
//	    return node.H(node.TypeText, node.Props{
//	        "onClick": func() { setCount.Update(func(n int) int { return n + 1 }) },
//	    }, "Count: ", count)
//	}
//
//	func main() {
//	    if err := core.Register(counter); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Sessions and Instances
//
// A Session is one open document. Mount places an Instance; the host then
// calls Flush (or Run) to render scheduled instances and publish local
// writes. Triggers coalesce: any number of writes, remote merges and task
// completions before a Flush produce a single pass per instance.
//
// # Hooks
//
// UseSyncedState, UseSyncedStateFunc and UseSyncedMap read synced state.
// UseEffect registers work to run after the pass commits. UsePropertyMenu
// registers the property menu. Hooks panic with ErrHookOutsideRender when
// called with a Context whose pass has ended; the panic aborts that pass.
//
// Synced state names identify hooks across passes, so a render function
// must request the same names in the same order every pass.
//
// # Errors
//
// A pass that fails, by returning through a panic or a hook configuration
// error, commits nothing: the previous tree, menu and effects stay in
// place and the error is reported through the errors package and returned
// by Flush.
package core
