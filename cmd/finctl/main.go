// Command finctl runs sync jobs, statement ingestion and reports against the
// local ledger without going through the HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
