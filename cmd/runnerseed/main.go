package main

import (
	"os"

	"github.com/hoistci/runnerseed/cmd/runnerseed/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
