package main

import (
	"os"

	"github.com/harborml/skiff/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
