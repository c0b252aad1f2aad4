package main

import (
	"os"

	"github.com/TheBearodactyl/apiodactyl-v2/cmd/readygate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
