package main

import (
	"os"

	g4lcmder "github.com/localcompute/g4l/cmd/g4l"
)

func main() {
	cmd := g4lcmder.NewG4LCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
