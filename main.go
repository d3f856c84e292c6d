// The main package for the listing-extractor executable.
package main

import (
	"github.com/JakeFAU/listing-extractor/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
