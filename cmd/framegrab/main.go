package main

import (
	"os"

	"github.com/junsooki/framegrab/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
