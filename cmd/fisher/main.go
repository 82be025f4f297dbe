package main

import (
	"os"

	"github.com/piaoger/fisher/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
