// The main package for the criticcrawler executable.
package main

import (
	"github.com/JakeFAU/critic-review-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
