package main

import (
	_ "embed"
	"strings"

	"github.com/seuros/pathflow/internal/cli"
	"github.com/seuros/pathflow/internal/logging"
)

//go:embed VERSION
var versionFile string

var executeCLI = cli.Execute

func run() error {
	return executeCLI(strings.TrimSpace(versionFile))
}

func main() {
	if err := run(); err != nil {
		logging.Fatal("pathflow execution failed", "error", err)
	}
}
