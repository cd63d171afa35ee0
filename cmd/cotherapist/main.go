package main

import (
	"os"

	"github.com/danielpatrickdp/cotherapist/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
