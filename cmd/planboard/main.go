package main

import (
	"os"

	"github.com/monocle-dev/planboard/cmd/planboard/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
