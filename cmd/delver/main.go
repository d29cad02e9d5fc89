// Package main is the entry point for the delver CLI.
package main

import (
	"os"

	"github.com/jmylchreest/delver/cmd/delver/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
