package cli

import (
	licensingApp "github.com/felixgeelhaar/tally/internal/licensing/application"
	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/internal/licensing/infrastructure/diagnostics"
)

// App holds the CLI application dependencies.
type App struct {
	Flavor  domain.Flavor
	Handler *licensingApp.Handler

	// Session is nil when the flavor has no in-app billing or no store
	// credentials are configured.
	Session *licensingApp.Session

	Diagnostics *diagnostics.Reporter
}

// NewApp creates a new CLI application.
func NewApp(flavor domain.Flavor, handler *licensingApp.Handler, session *licensingApp.Session, reporter *diagnostics.Reporter) *App {
	return &App{
		Flavor:      flavor,
		Handler:     handler,
		Session:     session,
		Diagnostics: reporter,
	}
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

func requireHandler() (*App, error) {
	a := GetApp()
	if a == nil || a.Handler == nil {
		return nil, errNotInitialized
	}
	return a, nil
}
