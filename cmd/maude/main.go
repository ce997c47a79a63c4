package main

import (
	"os"

	"github.com/roach88/maude/internal/cli"
)

var version = "dev"

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = version
	err := cmd.Execute()
	os.Exit(cli.GetExitCode(err))
}
