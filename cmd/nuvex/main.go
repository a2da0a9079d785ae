// Command nuvex is a thin operational CLI over the client package: every
// subcommand loads configuration, connects, performs one operation, and
// disconnects. It is meant for scripting and ad-hoc inspection, not as a
// long-running server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
