// Package main is the entry point for ledgerd.
package main

import (
	"os"

	"github.com/mmynk/splitledger/cmd/ledgerd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
