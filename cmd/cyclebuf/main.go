// Package main is the entry point for the cyclebuf CLI.
package main

import (
	"os"

	"github.com/runger/cyclebuf/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
