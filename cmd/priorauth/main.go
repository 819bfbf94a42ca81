package main

import (
	"os"

	"github.com/solatis/priorauth/cmd/priorauth/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
