// The main package for the tabelog2kml executable.
package main

import (
	"github.com/JakeFAU/tabelog2kml/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
