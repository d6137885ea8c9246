// Package visits wires the visit request module: the buyer/agent
// negotiation lifecycle and the reputation consequences of its outcomes.
package visits

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	catalogrepo "propertyhub_backend/internal/catalog/repository"
	directoryservice "propertyhub_backend/internal/directory/service"
	"propertyhub_backend/internal/events"
	apphttp "propertyhub_backend/internal/http"
	"propertyhub_backend/internal/reputation"
	"propertyhub_backend/internal/visits/handler"
	"propertyhub_backend/internal/visits/repository"
	"propertyhub_backend/internal/visits/service"
	"propertyhub_backend/platform/logger"
	"propertyhub_backend/platform/validator"
)

// Deps are the collaborators the visits module needs from other modules.
type Deps struct {
	DB         *pgxpool.Pool
	Properties *catalogrepo.Repository
	Users      service.UserDirectory
	Warnings   *directoryservice.Service
	Engine     *reputation.Engine
	Bus        events.Bus
	Scheduler  service.ReminderScheduler
	// ReminderLeadTime is how long before a confirmed visit the reminder
	// fires.
	ReminderLeadTime time.Duration
	Validator        *validator.Validator
	Logger           *logger.Logger
}

// Module bundles the visits bounded context.
type Module struct {
	Repo    *repository.Repository
	Service *service.Service
	handler *handler.Handler
}

// NewModule constructs the visits module.
func NewModule(d Deps) *Module {
	repo := repository.New(d.DB)
	svc := service.New(
		repo,
		d.Properties,
		d.Users,
		d.Warnings,
		d.Engine,
		d.Bus,
		d.Scheduler,
		d.ReminderLeadTime,
		d.Logger,
	)
	return &Module{
		Repo:    repo,
		Service: svc,
		handler: handler.New(svc, d.Validator, d.Logger),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "visits"
}

// RegisterRoutes mounts the visit request endpoints on the protected group.
func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	visits := rc.Protected.Group("/visits")
	{
		visits.POST("", m.handler.Create)
		visits.GET("/my-requests", m.handler.ListMine)
		visits.GET("/agent-requests", m.handler.ListForAgent)
		visits.GET("/:id", m.handler.Get)
		visits.POST("/:id/accept", m.handler.Accept)
		visits.POST("/:id/propose", m.handler.ProposeReschedule)
		visits.POST("/:id/decline", m.handler.Decline)
		visits.POST("/:id/confirm", m.handler.ConfirmProposal)
		visits.POST("/:id/complete", m.handler.Complete)
		visits.POST("/:id/cancel", m.handler.Cancel)
		visits.POST("/:id/interested", m.handler.MarkInterested)
	}
}
