package main

import (
	"fmt"
	"os"

	"github.com/Shibarkan/cafe/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "possync:", err)
		os.Exit(1)
	}
}
