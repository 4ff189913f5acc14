package main

import (
	"os"

	"bite/internal/cmd"
)

func main() {
	if code := cmd.Execute(); code != 0 {
		os.Exit(code)
	}
	os.Exit(cmd.ExitCode())
}
