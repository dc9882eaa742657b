package main

import (
	"github.com/loomdb/loom/internal/cli"
)

func main() {
	cli.Execute()
}
