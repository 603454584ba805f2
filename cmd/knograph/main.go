package main

import (
	"fmt"
	"os"

	"github.com/knograph/knograph/cmd/knograph/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
