package main

import (
	"os"

	"github.com/gustycube/quad9-domains/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
