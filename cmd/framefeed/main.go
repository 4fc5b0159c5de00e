package main

import (
	"os"

	"github.com/junsooki/framegrab/internal/cmd/framefeed"
)

func main() {
	if err := framefeed.Execute(); err != nil {
		os.Exit(1)
	}
}
