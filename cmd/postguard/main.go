package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tkingovr/postguard/cmd/postguard/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if errors.Is(err, cli.ErrBlocked) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
