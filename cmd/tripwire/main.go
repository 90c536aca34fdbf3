package main

import (
	"fmt"
	"os"

	"github.com/roach88/tripwire/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorStyle.Render(fmt.Sprintf("Error: %v", err)))
		os.Exit(cli.GetExitCode(err))
	}
}
