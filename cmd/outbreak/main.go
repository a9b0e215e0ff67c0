// Package main provides the outbreak CLI.
package main

import (
	"os"

	"github.com/SIR-SEE/final-project-team-15/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
