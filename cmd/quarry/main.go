// Package main is the entry point for the quarry CLI.
package main

import (
	"os"

	"github.com/quarrydocs/quarry/cmd/quarry/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
