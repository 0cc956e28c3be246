// The main package for the castcrawler executable.
package main

import (
	"github.com/JakeFAU/castcrawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
