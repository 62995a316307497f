// Package main is the stepsync command-line client.
package main

import (
	"context"
	"os"

	"github.com/roach88/stepsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
