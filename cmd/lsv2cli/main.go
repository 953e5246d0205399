// Package main provides a command-line client for LSV2 controllers.
package main

import (
	"os"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		outputError("%v", err)
		os.Exit(1)
	}
}
