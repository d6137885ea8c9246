// Package notification wires the notification module. It subscribes to the
// visit lifecycle events and turns them into feed entries, live SSE pushes
// and emails for the participant on the other side of the transition.
package notification

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"propertyhub_backend/internal/email"
	"propertyhub_backend/internal/events"
	apphttp "propertyhub_backend/internal/http"
	"propertyhub_backend/internal/notification/handler"
	"propertyhub_backend/internal/notification/inapp"
	"propertyhub_backend/internal/notification/service"
	"propertyhub_backend/internal/notification/sse"
	"propertyhub_backend/platform/logger"
)

// Module bundles the notification bounded context.
type Module struct {
	Service *service.Service
	SSE     *sse.Service
	handler *handler.Handler
	log     *logger.Logger
}

// NewModule constructs the notification module and subscribes it to the
// visit lifecycle events.
func NewModule(db *pgxpool.Pool, mail email.Sender, users service.UserDirectory, bus events.Bus, log *logger.Logger) *Module {
	feed := inapp.New(db)
	stream := sse.New(log)
	svc := service.New(feed, stream, mail, users, log)

	m := &Module{
		Service: svc,
		SSE:     stream,
		handler: handler.New(feed, stream, log),
		log:     log,
	}

	for _, name := range []string{
		events.VisitRequested{}.EventName(),
		events.VisitConfirmed{}.EventName(),
		events.VisitRescheduleProposed{}.EventName(),
		events.VisitDeclined{}.EventName(),
		events.VisitCompleted{}.EventName(),
		events.VisitCancelled{}.EventName(),
		events.VisitReminderDue{}.EventName(),
		events.VisitInterestMarked{}.EventName(),
		events.BuyerFlagged{}.EventName(),
	} {
		bus.Subscribe(name, m)
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes mounts the feed and stream endpoints.
func (m *Module) RegisterRoutes(rc *apphttp.RouterContext) {
	n := rc.Protected.Group("/notifications")
	{
		n.GET("", m.handler.List)
		n.GET("/unread-count", m.handler.UnreadCount)
		n.GET("/stream", m.handler.Stream)
		n.POST("/:id/read", m.handler.MarkRead)
		n.POST("/read-all", m.handler.MarkAllRead)
	}
}

// Handle routes a domain event to the matching delivery.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.VisitRequested:
		m.Service.Deliver(ctx, service.Notification{
			UserID:         e.AgentID,
			Title:          "New visit request",
			Body:           fmt.Sprintf("A buyer requested a %s visit on %s between %s and %s.", e.VisitType, e.Date.Format("2006-01-02"), e.StartTime, e.EndTime),
			TypeTag:        "visit_requested",
			RelatedVisitID: &e.VisitID,
			SendEmail:      true,
		})
	case events.VisitConfirmed:
		// Tell the participant who did not do the confirming.
		recipient := e.BuyerID
		if e.ConfirmedBy == e.BuyerID {
			recipient = e.AgentID
		}
		m.Service.Deliver(ctx, service.Notification{
			UserID:         recipient,
			Title:          "Visit confirmed",
			Body:           fmt.Sprintf("Your visit is confirmed for %s between %s and %s.", e.Date.Format("2006-01-02"), e.StartTime, e.EndTime),
			TypeTag:        "visit_confirmed",
			RelatedVisitID: &e.VisitID,
			SendEmail:      true,
		})
	case events.VisitRescheduleProposed:
		m.Service.Deliver(ctx, service.Notification{
			UserID:         e.BuyerID,
			Title:          "New time proposed",
			Body:           fmt.Sprintf("The agent proposed %s between %s and %s instead. Confirm to book it.", e.Date.Format("2006-01-02"), e.StartTime, e.EndTime),
			TypeTag:        "visit_reschedule_proposed",
			RelatedVisitID: &e.VisitID,
			SendEmail:      true,
		})
	case events.VisitDeclined:
		m.Service.Deliver(ctx, service.Notification{
			UserID:         e.BuyerID,
			Title:          "Visit request declined",
			Body:           fmt.Sprintf("Your visit request was declined: %s", e.Reason),
			TypeTag:        "visit_declined",
			RelatedVisitID: &e.VisitID,
			SendEmail:      true,
		})
	case events.VisitCompleted:
		// No-show and cancellation outcomes are silent towards the buyer;
		// the standing endpoints surface those.
		if e.Outcome == "completed" {
			m.Service.Deliver(ctx, service.Notification{
				UserID:         e.BuyerID,
				Title:          "Visit completed",
				Body:           "Thanks for visiting. You can mark your interest in the property from your visit history.",
				TypeTag:        "visit_completed",
				RelatedVisitID: &e.VisitID,
			})
		}
	case events.VisitCancelled:
		recipient := e.BuyerID
		if e.CancelledBy == e.BuyerID {
			recipient = e.AgentID
		}
		m.Service.Deliver(ctx, service.Notification{
			UserID:         recipient,
			Title:          "Visit cancelled",
			Body:           "The visit request was cancelled by the other participant.",
			TypeTag:        "visit_cancelled",
			RelatedVisitID: &e.VisitID,
			SendEmail:      true,
		})
	case events.VisitReminderDue:
		body := fmt.Sprintf("Reminder: your visit is on %s at %s.", e.Date.Format("2006-01-02"), e.StartTime)
		for _, userID := range []int64{e.BuyerID, e.AgentID} {
			m.Service.Deliver(ctx, service.Notification{
				UserID:         userID,
				Title:          "Upcoming visit",
				Body:           body,
				TypeTag:        "visit_reminder",
				RelatedVisitID: &e.VisitID,
				SendEmail:      true,
			})
		}
	case events.VisitInterestMarked:
		m.Service.Deliver(ctx, service.Notification{
			UserID:         e.BuyerID,
			Title:          "Interest recorded",
			Body:           "The agent recorded your interest in the property after your visit.",
			TypeTag:        "visit_interest_marked",
			RelatedVisitID: &e.VisitID,
		})
	case events.BuyerFlagged:
		m.Service.Deliver(ctx, service.Notification{
			UserID:    e.BuyerID,
			Title:     "Account flagged",
			Body:      fmt.Sprintf("%s. Contact support to resolve this.", e.Reason),
			TypeTag:   "account_flagged",
			SendEmail: true,
		})
	default:
		m.log.Warn("unhandled_event", "event", event.EventName())
	}
	return nil
}
