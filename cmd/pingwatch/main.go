// Command pingwatch prints the pings of a pingserver event stream.
package main

import (
	"os"

	"github.com/kbukum/pingstream/internal/watchcli"
)

func main() {
	if err := watchcli.Execute(); err != nil {
		os.Exit(1)
	}
}
