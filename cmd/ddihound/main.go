// Package main is the entry point for the ddihound CLI.
package main

import (
	"os"

	"github.com/ddihound/ddihound/cmd/ddihound/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
