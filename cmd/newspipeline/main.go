package main

import (
	"fmt"
	"os"

	"NewsPipeline/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "newspipeline:", err)
		os.Exit(1)
	}
}
