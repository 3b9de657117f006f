package main

import (
	"fmt"
	"os"

	"github.com/hackgods/gaci-appointment-queue/internal/cli"
)

var version = "dev"

func main() {
	cli.Version = version
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
