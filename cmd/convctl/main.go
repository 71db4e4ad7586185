package main

import (
	"os"

	"convd/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
