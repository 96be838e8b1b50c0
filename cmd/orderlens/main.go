package main

import (
	"os"

	"github.com/Additional-Code/orderlens/internal/cli"
	"github.com/Additional-Code/orderlens/pkg/errorbank"
)

func main() {
	err := cli.Execute()
	switch {
	case err == nil:
	case errorbank.IsKind(err, errorbank.KindBadRequest), errorbank.IsKind(err, errorbank.KindNotFound):
		// Bad scenario name or parameters.
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
