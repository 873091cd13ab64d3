// Command tradinghall runs the trading hall simulation, either headless with
// the snapshot feed or behind the terminal UI, and inspects its journal.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
