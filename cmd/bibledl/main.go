// Command bibledl runs download jobs from the command line.
package main

import (
	"fmt"
	"os"

	"bibledownloader/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
