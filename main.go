package main

import (
	"os"

	"github.com/temirov/nagbuild/cmd/cli"
)

// main runs the nagbuild command-line application. Failures are reported by
// the application itself; only the exit status is set here.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		os.Exit(1)
	}
}
