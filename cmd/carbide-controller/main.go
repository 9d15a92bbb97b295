// Command carbide-controller runs the State-Handler Framework
// controller loop over network segment objects.
package main

import (
	"fmt"
	"os"

	"github.com/nvidia/carbide-core/cmd/carbide-controller/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
