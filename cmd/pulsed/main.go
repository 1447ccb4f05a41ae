// pulsed - runtime engine for simulated HTTP services.
package main

import (
	"fmt"
	"os"

	"github.com/apicentric/pulsed/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
