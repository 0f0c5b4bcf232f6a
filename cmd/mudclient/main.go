// Command mudclient is a terminal client for the k6mud WebSocket frontend.
package main

import (
	"os"

	"github.com/cory-johannsen/k6mud/internal/client"
)

func main() {
	if err := client.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
