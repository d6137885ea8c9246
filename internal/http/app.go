// Package http assembles the HTTP surface: the shared App wiring and the
// module registration contract.
package http

import (
	"propertyhub_backend/platform/config"
	"propertyhub_backend/platform/logger"
)

// App carries the cross-cutting pieces the router needs to mount modules.
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Modules []Module
}
