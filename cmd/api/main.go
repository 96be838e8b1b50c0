// Command api runs the HTTP and gRPC servers directly, without the CLI.
package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/orderlens/internal/app"
)

func main() {
	fx.New(app.HTTP).Run()
}
