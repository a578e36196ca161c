// Command enginectl is a CLI for validating, compiling, running, and
// visualizing statechart definitions against the engine.
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
