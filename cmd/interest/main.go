package main

import (
	"os"

	"github.com/lazypower/interest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
