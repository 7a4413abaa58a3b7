package main

import (
	"os"

	"github.com/rustyeddy/gomt5/cmd/gomt5/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
