// The main package for the feedagg executable.
package main

import (
	"github.com/JakeFAU/feed-aggregator/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
