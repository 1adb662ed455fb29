// Command linegrid runs the ingest service: the HTTP upload surface, the
// processing worker, or both in one process, depending on configuration.
package main

import (
	"fmt"
	"os"

	"github.com/linegrid/linegrid/cmd/linegrid/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
