// Package main is the entry point for the clipctl administration tool.
package main

import (
	"os"

	"github.com/good-yellow-bee/clipforge/cmd/clipctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
