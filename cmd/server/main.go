package main

import (
	"os"

	"github.com/Tyrowin/pokerroom/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
