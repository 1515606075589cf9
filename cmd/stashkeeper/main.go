package main

import (
	"os"

	"github.com/solatis/stashkeeper/cmd/stashkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
