// Command graphmem is a thin CLI over the engine: load a journal, run
// searches in any mode, and inspect stats.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
