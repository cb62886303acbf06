package main

import (
	"os"

	"github.com/go-drift/mend/cmd/mend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
