// Package testing provides a widget testing harness for widgetkit.
//
// # Quick Start
//
// Create a tester, pump a widget, and make assertions:
//
//	func TestCounter(t *testing.T) {
//	    tester := widgettest.NewWidgetTesterWithT(t, Counter)
//	    tester.PumpWidget(nil)
//
//	    // Simulate a click, then render
//	    tester.Tap(widgettest.ByTextContaining("Count"))
//	    tester.Pump()
//
//	    // Assert on the committed tree
//	    if !tester.Find(widgettest.ByText("Count: 1")).Exists() {
//	        t.Error("expected 'Count: 1'")
//	    }
//	}
//
// # Multiplayer Tests
//
// Testers share synced state when they are given endpoints of the same
// replication.Hub:
//
//	hub := replication.NewHub()
//	a := widgettest.NewWidgetTesterWithT(t, Poll, widgettest.WithChannel(hub.Connect("a")))
//	b := widgettest.NewWidgetTesterWithT(t, Poll, widgettest.WithChannel(hub.Connect("b")))
//
// # Snapshot Testing
//
// Capture and compare the committed tree, synced state and property menu:
//
//	snapshot := tester.CaptureSnapshot()
//	snapshot.MatchesFile(t, "testdata/poll.snapshot.json")
//
// Update snapshots with:
//
//	WIDGETKIT_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import widgettest "github.com/go-drift/widgetkit/pkg/testing"
package testing
