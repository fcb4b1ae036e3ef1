// Command bm turns a Logseq-style graph into navigable mind maps: printed,
// exported, explored in the terminal, or served live to a browser.
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
