package main

import (
	"os"

	"podrepo-agent/cmd/podrepo-agent/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
