package main

import (
	"os"

	"github.com/armadaproject/energysched/cmd/simulator/cmd"
)

func main() {
	root := cmd.RootCmd()
	// Cobra prints the error; usage is only useful for flag errors.
	root.SilenceUsage = true
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
