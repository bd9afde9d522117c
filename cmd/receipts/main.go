package main

import (
	"os"

	"receipts/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	cli.SetupLogger()

	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
