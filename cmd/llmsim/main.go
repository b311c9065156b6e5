package main

import (
	"os"

	"github.com/llmsim/llmsim/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:]))
}
