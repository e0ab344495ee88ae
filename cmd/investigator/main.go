package main

import (
	"os"

	"github.com/miradorstack/mirador-investigator/cmd/investigator/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
