// Package domain provides core business rules for the visits bounded context.
package domain

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a visit request.
type Status string

const (
	StatusPending            Status = "pending"
	StatusConfirmed          Status = "confirmed"
	StatusProposedReschedule Status = "proposed_reschedule"
	StatusDeclined           Status = "declined"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
	StatusNoShowBuyer        Status = "no_show_buyer"
	StatusNoShowAgent        Status = "no_show_agent"
)

// AllStatuses lists every legal status value.
var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusProposedReschedule,
	StatusDeclined,
	StatusCompleted,
	StatusCancelled,
	StatusNoShowBuyer,
	StatusNoShowAgent,
}

// ActiveStatuses are the statuses that count toward a buyer's active-request
// cap and block a duplicate request for the same property.
var ActiveStatuses = []Status{
	StatusPending,
	StatusProposedReschedule,
	StatusConfirmed,
}

// transitions maps each target status to the source statuses it is legal from.
var transitions = map[Status][]Status{
	StatusConfirmed:          {StatusPending, StatusProposedReschedule},
	StatusProposedReschedule: {StatusPending, StatusProposedReschedule},
	StatusDeclined:           {StatusPending, StatusProposedReschedule},
	StatusCompleted:          {StatusConfirmed},
	StatusNoShowBuyer:        {StatusConfirmed},
	StatusNoShowAgent:        {StatusConfirmed},
	StatusCancelled:          {StatusPending, StatusProposedReschedule, StatusConfirmed},
}

// IsValid reports whether s is one of the known status values.
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusDeclined, StatusNoShowBuyer, StatusNoShowAgent:
		return true
	}
	return false
}

// IsActive reports whether s counts as an active negotiation.
func (s Status) IsActive() bool {
	for _, active := range ActiveStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// CanTransition reports whether moving from one status to another follows a
// legal edge of the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, source := range transitions[to] {
		if source == from {
			return true
		}
	}
	return false
}

// AllowedSources returns the statuses a target status may be reached from.
func AllowedSources(to Status) []Status {
	return append([]Status(nil), transitions[to]...)
}

// InvalidTransitionMessage builds the InvalidState error message, naming the
// current status and the statuses the requested transition is allowed from.
func InvalidTransitionMessage(current, to Status) string {
	return InvalidTransitionMessageFrom(current, to, transitions[to])
}

// InvalidTransitionMessageFrom is InvalidTransitionMessage with an explicit
// allowed-source set, for operations stricter than the raw lifecycle graph.
func InvalidTransitionMessageFrom(current, to Status, allowed []Status) string {
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("cannot transition visit request from %q to %q; allowed from: %s",
		current, to, strings.Join(names, ", "))
}

// CompletionOutcomes are the statuses the complete operation may record.
var CompletionOutcomes = []Status{
	StatusCompleted,
	StatusNoShowBuyer,
	StatusNoShowAgent,
	StatusCancelled,
}

// IsCompletionOutcome reports whether s is a legal completion outcome.
func IsCompletionOutcome(s Status) bool {
	for _, outcome := range CompletionOutcomes {
		if s == outcome {
			return true
		}
	}
	return false
}
