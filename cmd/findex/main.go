// Package main provides the entry point for the findex CLI.
package main

import (
	"os"

	"github.com/findex-dev/findex/cmd/findex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
