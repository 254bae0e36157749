package mcp

import (
	"github.com/felixgeelhaar/tally/adapter/cli"
	"github.com/felixgeelhaar/tally/internal/app"
)

// NewCLIApp creates a CLI application instance backed by the provided container.
func NewCLIApp(container *app.Container) *cli.App {
	return cli.NewApp(container.Flavor, container.Handler, container.Session, container.Diagnostics)
}
