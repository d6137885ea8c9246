// Package directory wires the account standing module: user lookups, agent
// eligibility and reputation warnings.
package directory

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"propertyhub_backend/internal/directory/handler"
	"propertyhub_backend/internal/directory/repository"
	"propertyhub_backend/internal/directory/service"
	apphttp "propertyhub_backend/internal/http"
	"propertyhub_backend/internal/reputation"
	"propertyhub_backend/platform/logger"
)

// Module bundles the directory bounded context.
type Module struct {
	Repo    *repository.Repository
	Service *service.Service
	handler *handler.Handler
}

// NewModule constructs the directory module.
func NewModule(db *pgxpool.Pool, engine *reputation.Engine, log *logger.Logger) *Module {
	repo := repository.New(db)
	svc := service.New(repo, engine, log)
	return &Module{
		Repo:    repo,
		Service: svc,
		handler: handler.New(svc, log),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "directory"
}

// RegisterRoutes mounts the standing endpoints on the protected group.
func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	agents := rc.Protected.Group("/agents/me")
	{
		agents.GET("/eligibility", m.handler.CheckEligibility)
		agents.GET("/warnings", m.handler.GetWarnings)
		agents.GET("/standing", m.handler.GetStanding)
	}
	rc.Protected.GET("/users/me/standing", m.handler.GetBuyerStanding)
}
