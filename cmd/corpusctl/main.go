// Package main is the entry point for the corpusctl application.
package main

import (
	"os"

	"github.com/jmylchreest/corpusctl/cmd/corpusctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
