// Package main is the entry point for the dashboard CLI.
package main

import (
	"os"

	"github.com/aiodash/aiodash/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
