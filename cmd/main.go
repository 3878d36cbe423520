package main

import (
	"os"

	"openquest-settlement/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
