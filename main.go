package main

import (
	"flag"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/auth"
	"github.com/ghaggin/classroom/internal/catalog"
	"github.com/ghaggin/classroom/internal/config"
	"github.com/ghaggin/classroom/internal/guard"
	"github.com/ghaggin/classroom/internal/permissions"
	"github.com/ghaggin/classroom/internal/portal"
	"github.com/ghaggin/classroom/internal/routes"
	"github.com/ghaggin/classroom/internal/shell"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	var mode = flag.String("mode", "", "either portal or shell")
	flag.Parse()

	deps := fx.Options(
		fx.Provide(
			zap.NewDevelopment,
			config.New,
			api.New,
			auth.New,
			catalog.New,
			newRoutes,
		),
	)

	var app *fx.App
	switch config.Mode(*mode) {
	case config.ModePortal:
		app = fx.New(deps, portal.Module)
	case config.ModeShell:
		app = fx.New(deps, shell.Module, fx.NopLogger)
	default:
		panic("unrecognized mode")
	}

	app.Run()
}

func newRoutes(c *catalog.Client, s api.SessionReader, log *zap.Logger) (*routes.Table, error) {
	return routes.New(routes.Declarations, map[string]guard.PermissionCheck{
		routes.CheckCourseOwner: permissions.NewCourseOwner(c, s, log),
	})
}
