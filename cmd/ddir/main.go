package main

import (
	"fmt"
	"os"

	"github.com/marmos91/dittodir/cmd/ddir/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ddir: %v\n", err)
		os.Exit(1)
	}
}
