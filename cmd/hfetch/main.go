// Package main is the entry point for the hfetch CLI.
package main

import (
	"os"

	"github.com/adamwoolhether/hfetch/cmd"
)

func main() {
	code := cmd.Main()
	os.Exit(code)
}
