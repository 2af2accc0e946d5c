package main

import (
	"os"

	"github.com/ashita-ai/hakari/cmd/hakarictl/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
