// Package events defines the domain events published by the visit lifecycle
// and re-exports the platform event bus types so modules only import one
// events package.
package events

import (
	"time"

	"propertyhub_backend/platform/events"
	"propertyhub_backend/platform/logger"
)

// Re-exported platform types.
type (
	Event       = events.Event
	BaseEvent   = events.BaseEvent
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	Bus         = events.Bus
	InMemoryBus = events.InMemoryBus
)

// NewBaseEvent creates the embedded base for a domain event.
func NewBaseEvent() BaseEvent {
	return events.NewBaseEvent()
}

// NewInMemoryBus creates the process-local bus used by the API server.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// VisitRequested fires when a buyer creates a visit request.
type VisitRequested struct {
	BaseEvent
	VisitID    int64
	PropertyID int64
	BuyerID    int64
	AgentID    int64
	VisitType  string
	Date       time.Time
	StartTime  string
	EndTime    string
}

func (VisitRequested) EventName() string { return "visits.requested" }

// VisitConfirmed fires when a visit reaches confirmed, either through a
// direct accept or the buyer confirming a reschedule proposal.
type VisitConfirmed struct {
	BaseEvent
	VisitID     int64
	PropertyID  int64
	BuyerID     int64
	AgentID     int64
	ConfirmedBy int64
	Date        time.Time
	StartTime   string
	EndTime     string
}

func (VisitConfirmed) EventName() string { return "visits.confirmed" }

// VisitRescheduleProposed fires when the agent counters with a new window.
type VisitRescheduleProposed struct {
	BaseEvent
	VisitID    int64
	PropertyID int64
	BuyerID    int64
	AgentID    int64
	Date       time.Time
	StartTime  string
	EndTime    string
}

func (VisitRescheduleProposed) EventName() string { return "visits.reschedule_proposed" }

// VisitDeclined fires when the agent declines a request.
type VisitDeclined struct {
	BaseEvent
	VisitID    int64
	PropertyID int64
	BuyerID    int64
	AgentID    int64
	Reason     string
}

func (VisitDeclined) EventName() string { return "visits.declined" }

// VisitCompleted fires when the agent records a completion outcome for a
// confirmed visit. Outcome is one of completed, no_show_buyer, no_show_agent
// or cancelled.
type VisitCompleted struct {
	BaseEvent
	VisitID    int64
	PropertyID int64
	BuyerID    int64
	AgentID    int64
	Outcome    string
}

func (VisitCompleted) EventName() string { return "visits.completed" }

// VisitCancelled fires when either participant cancels an active request.
type VisitCancelled struct {
	BaseEvent
	VisitID     int64
	PropertyID  int64
	BuyerID     int64
	AgentID     int64
	CancelledBy int64
}

func (VisitCancelled) EventName() string { return "visits.cancelled" }

// VisitReminderDue fires from the scheduler worker shortly before a
// confirmed visit's start time.
type VisitReminderDue struct {
	BaseEvent
	VisitID    int64
	PropertyID int64
	BuyerID    int64
	AgentID    int64
	Date       time.Time
	StartTime  string
}

func (VisitReminderDue) EventName() string { return "visits.reminder_due" }

// VisitInterestMarked fires when a buyer records interest after a
// completed visit.
type VisitInterestMarked struct {
	BaseEvent
	VisitID    int64
	PropertyID int64
	BuyerID    int64
	AgentID    int64
}

func (VisitInterestMarked) EventName() string { return "visits.interest_marked" }

// BuyerFlagged fires when a buyer crosses the no-show threshold and is
// automatically flagged.
type BuyerFlagged struct {
	BaseEvent
	BuyerID     int64
	NoShowCount int
	Reason      string
}

func (BuyerFlagged) EventName() string { return "users.buyer_flagged" }
