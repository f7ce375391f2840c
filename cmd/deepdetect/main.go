package main

import (
	"fmt"
	"io"
	"os"
)

// Version is overridden at build time.
var Version = "dev"

func main() {
	runMain(os.Args, os.Stdout, os.Stderr, os.Exit)
}

func runMain(args []string, stdout io.Writer, stderr io.Writer, exit func(int)) {
	cmd := newRootCmd()
	cmd.Version = Version
	if len(args) > 1 {
		cmd.SetArgs(args[1:])
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		exit(1)
	}
}
