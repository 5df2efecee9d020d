package main

import (
	"fmt"
	"os"

	"github.com/mohammedgqudah/ff/internal/cli"
	"github.com/mohammedgqudah/ff/internal/output"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", output.Colors.Error("Error:"), err)
		os.Exit(1)
	}
}
