package main

import (
	"os"

	"github.com/solatis/nutriprotocol/cmd/nutriprotocol/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
