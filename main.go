package main

import (
	"os"

	"github.com/conneroisu/reshape/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
