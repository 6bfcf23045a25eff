// Command issuenet clusters a news corpus into issues, stores them with
// their keyword networks, and answers queries over the stored results.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
