package main

import (
	"os"

	"github.com/corray333/backend-labs/kds/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
