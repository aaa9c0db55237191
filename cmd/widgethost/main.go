// Command widgethost runs, serves and inspects widgetkit widgets.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/widgetkit/cmd/widgethost/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
