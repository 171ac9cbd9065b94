package main

import (
	"fmt"
	"os"

	"regai/internal/logging"
)

func main() {
	defer logging.Sync()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
