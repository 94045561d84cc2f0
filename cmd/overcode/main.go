// Overcode is an incremental source tree indexer.
package main

import "github.com/albertocavalcante/overcode/cmd/overcode/internal/cli"

func main() {
	cli.Execute()
}
