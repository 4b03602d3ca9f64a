// Command ragqa answers natural-language questions over a local document
// collection. It ingests text and PDF files into a vector index and serves
// grounded answers from a CLI or an HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/ragqa-go/cmd/ragqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
