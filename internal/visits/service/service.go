// Package service implements the visit request lifecycle: the negotiation
// between buyer and agent, the reputation writes each transition triggers,
// and the notifications published after commit.
package service

import (
	"context"
	"fmt"
	"time"

	catalog "propertyhub_backend/internal/catalog/repository"
	directory "propertyhub_backend/internal/directory/repository"
	"propertyhub_backend/internal/events"
	"propertyhub_backend/internal/reputation"
	"propertyhub_backend/internal/visits/domain"
	"propertyhub_backend/internal/visits/repository"
	"propertyhub_backend/internal/visits/transport"
	"propertyhub_backend/platform/apperr"
	"propertyhub_backend/platform/logger"
	"propertyhub_backend/platform/sanitize"
)

// VisitStore is the persistence port for visit requests.
type VisitStore interface {
	Create(ctx context.Context, v *repository.VisitRequest) (*repository.VisitRequest, error)
	GetByID(ctx context.Context, id int64) (*repository.VisitRequest, error)
	ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]*repository.VisitRequest, error)
	ListByAgent(ctx context.Context, agentID int64, limit, offset int) ([]*repository.VisitRequest, error)
	CountActiveForBuyer(ctx context.Context, buyerID int64) (int, error)
	HasActiveForProperty(ctx context.Context, buyerID, propertyID int64) (bool, error)
	MarkBuyerInterested(ctx context.Context, visitID int64) error
	Transition(ctx context.Context, p repository.TransitionParams) (*repository.TransitionResult, error)
}

// PropertyReader resolves properties from the catalog.
type PropertyReader interface {
	GetByID(ctx context.Context, id int64) (*catalog.Property, error)
}

// UserDirectory resolves user accounts.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*directory.User, error)
}

// WarningsProvider computes the advisory warnings returned inline with
// reputation-affecting responses.
type WarningsProvider interface {
	AgentWarnings(ctx context.Context, userID int64) ([]reputation.Warning, error)
}

// ReminderScheduler enqueues visit reminders. Implementations must be safe
// to call after the transition has committed; scheduling failures are logged
// and never fail the operation.
type ReminderScheduler interface {
	ScheduleVisitReminder(ctx context.Context, visitID int64, remindAt time.Time) error
}

// Service implements the visit request operations.
type Service struct {
	store      VisitStore
	properties PropertyReader
	users      UserDirectory
	warnings   WarningsProvider
	engine     *reputation.Engine
	bus        events.Bus
	scheduler  ReminderScheduler
	leadTime   time.Duration
	log        *logger.Logger
	now        func() time.Time
}

// New creates the visits service. scheduler may be nil when reminders are
// disabled.
func New(
	store VisitStore,
	properties PropertyReader,
	users UserDirectory,
	warnings WarningsProvider,
	engine *reputation.Engine,
	bus events.Bus,
	scheduler ReminderScheduler,
	reminderLeadTime time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		store:      store,
		properties: properties,
		users:      users,
		warnings:   warnings,
		engine:     engine,
		bus:        bus,
		scheduler:  scheduler,
		leadTime:   reminderLeadTime,
		log:        log,
		now:        time.Now,
	}
}

// TransitionOutcome is returned by reputation-affecting operations so the
// handler can surface the new state together with any advisory warnings.
type TransitionOutcome struct {
	Visit    *repository.VisitRequest
	Warnings []reputation.Warning
}

// Create registers a new pending visit request for a buyer.
func (s *Service) Create(ctx context.Context, buyerID int64, in transport.CreateVisitRequest) (*repository.VisitRequest, error) {
	window := domain.TimeWindow{Date: in.Date, Start: in.StartTime, End: in.EndTime}
	if reason := window.Validate(); reason != "" {
		return nil, apperr.Validation(reason)
	}
	if !window.IsFuture(s.now()) {
		return nil, apperr.Validation("the requested visit time must be in the future")
	}

	buyer, err := s.users.GetUserByID(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if buyer.Role != directory.RoleBuyer {
		return nil, apperr.PermissionDenied("only buyer accounts can request visits")
	}
	if buyer.IsFlagged {
		reason := "your account has been flagged and cannot create visit requests"
		if buyer.FlagReason != nil {
			reason = fmt.Sprintf("%s: %s", reason, *buyer.FlagReason)
		}
		return nil, apperr.Conflict(reason)
	}

	property, err := s.properties.GetByID(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if property.AgentID == buyerID {
		return nil, apperr.Validation("you cannot request a visit to your own listing")
	}
	if !property.IsVisitable() {
		return nil, apperr.Conflict("this property is not available for visits")
	}

	duplicate, err := s.store.HasActiveForProperty(ctx, buyerID, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, apperr.Conflict("you already have an active visit request for this property")
	}

	active, err := s.store.CountActiveForBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if max := s.engine.Config().MaxActiveRequests; active >= max {
		return nil, apperr.Conflict(fmt.Sprintf("you have reached the maximum of %d active visit requests", max))
	}

	visit, err := s.store.Create(ctx, &repository.VisitRequest{
		PropertyID:         in.PropertyID,
		BuyerID:            buyerID,
		AgentID:            property.AgentID,
		VisitType:          in.VisitType,
		PreferredDate:      in.Date,
		PreferredStartTime: in.StartTime,
		PreferredEndTime:   in.EndTime,
		BuyerNote:          sanitize.TextPtr(in.BuyerNote),
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.VisitRequested{
		BaseEvent:  events.NewBaseEvent(),
		VisitID:    visit.ID,
		PropertyID: visit.PropertyID,
		BuyerID:    visit.BuyerID,
		AgentID:    visit.AgentID,
		VisitType:  visit.VisitType,
		Date:       visit.PreferredDate,
		StartTime:  visit.PreferredStartTime,
		EndTime:    visit.PreferredEndTime,
	})
	return visit, nil
}

// Accept books the buyer's preferred slot. Only a pending request can be
// accepted; once the agent has countered, the proposal is the buyer's to
// confirm.
func (s *Service) Accept(ctx context.Context, agentID, visitID int64, in transport.AcceptVisitRequest) (*repository.VisitRequest, error) {
	if _, err := s.authorizeAgent(ctx, agentID, visitID); err != nil {
		return nil, err
	}

	result, err := s.store.Transition(ctx, repository.TransitionParams{
		VisitID:              visitID,
		To:                   domain.StatusConfirmed,
		AllowedFrom:          []domain.Status{domain.StatusPending},
		ConfirmFromPreferred: true,
		AgentNote:            sanitize.TextPtr(in.AgentNote),
		AgentID:              agentID,
	})
	if err != nil {
		return nil, err
	}
	visit := result.Visit

	s.publishConfirmed(ctx, visit, agentID)
	s.scheduleReminder(ctx, visit)
	return visit, nil
}

// ProposeReschedule counters the buyer's request with a new time window.
func (s *Service) ProposeReschedule(ctx context.Context, agentID, visitID int64, in transport.ProposeRescheduleRequest) (*repository.VisitRequest, error) {
	window := domain.TimeWindow{Date: in.Date, Start: in.StartTime, End: in.EndTime}
	if reason := window.Validate(); reason != "" {
		return nil, apperr.Validation(reason)
	}
	if !window.IsFuture(s.now()) {
		return nil, apperr.Validation("the proposed visit time must be in the future")
	}

	if _, err := s.authorizeAgent(ctx, agentID, visitID); err != nil {
		return nil, err
	}

	result, err := s.store.Transition(ctx, repository.TransitionParams{
		VisitID:   visitID,
		To:        domain.StatusProposedReschedule,
		Window:    &window,
		AgentNote: sanitize.TextPtr(in.AgentNote),
		AgentID:   agentID,
	})
	if err != nil {
		return nil, err
	}
	visit := result.Visit

	s.bus.Publish(ctx, events.VisitRescheduleProposed{
		BaseEvent:  events.NewBaseEvent(),
		VisitID:    visit.ID,
		PropertyID: visit.PropertyID,
		BuyerID:    visit.BuyerID,
		AgentID:    visit.AgentID,
		Date:       window.Date,
		StartTime:  window.Start,
		EndTime:    window.End,
	})
	return visit, nil
}

// Decline rejects a request with a reason shown to the buyer. Declining
// lowers the agent's ranking and counts toward the high-decline warning.
func (s *Service) Decline(ctx context.Context, agentID, visitID int64, in transport.DeclineVisitRequest) (*TransitionOutcome, error) {
	if _, err := s.authorizeAgent(ctx, agentID, visitID); err != nil {
		return nil, err
	}

	reason := sanitize.Text(in.Reason)
	result, err := s.store.Transition(ctx, repository.TransitionParams{
		VisitID:       visitID,
		To:            domain.StatusDeclined,
		DeclineReason: &reason,
		AgentID:       agentID,
		RankingDelta:  s.engine.RankingDelta(reputation.EventDeclineVisit),
		IncDeclined:   true,
	})
	if err != nil {
		return nil, err
	}
	visit := result.Visit

	s.bus.Publish(ctx, events.VisitDeclined{
		BaseEvent:  events.NewBaseEvent(),
		VisitID:    visit.ID,
		PropertyID: visit.PropertyID,
		BuyerID:    visit.BuyerID,
		AgentID:    visit.AgentID,
		Reason:     reason,
	})
	return s.outcomeWithWarnings(ctx, visit, agentID), nil
}

// ConfirmProposal lets the buyer accept the agent's counter-proposal. The
// proposed window becomes the effective slot.
func (s *Service) ConfirmProposal(ctx context.Context, buyerID, visitID int64) (*repository.VisitRequest, error) {
	visit, err := s.store.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.BuyerID != buyerID {
		return nil, apperr.PermissionDenied("only the requesting buyer can confirm a proposal")
	}
	if visit.ProposedWindow().IsZero() {
		return nil, apperr.InvalidState(domain.InvalidTransitionMessage(visit.Status, domain.StatusConfirmed))
	}

	result, err := s.store.Transition(ctx, repository.TransitionParams{
		VisitID:             visitID,
		To:                  domain.StatusConfirmed,
		AllowedFrom:         []domain.Status{domain.StatusProposedReschedule},
		ConfirmFromProposal: true,
		AgentID:             visit.AgentID,
	})
	if err != nil {
		return nil, err
	}
	visit = result.Visit

	s.publishConfirmed(ctx, visit, buyerID)
	s.scheduleReminder(ctx, visit)
	return visit, nil
}

// Complete records the outcome of a confirmed visit. Outcomes carry their
// reputation consequences: completion rewards the agent, no-shows penalize
// the absent party, and a buyer crossing the no-show threshold is flagged
// in the same transaction.
func (s *Service) Complete(ctx context.Context, agentID, visitID int64, in transport.CompleteVisitRequest) (*TransitionOutcome, error) {
	outcome := domain.Status(in.Outcome)
	if !domain.IsCompletionOutcome(outcome) {
		return nil, apperr.Validation(fmt.Sprintf("unknown visit outcome %q", in.Outcome))
	}

	visit, err := s.authorizeAgentActor(ctx, agentID, visitID)
	if err != nil {
		return nil, err
	}

	params := repository.TransitionParams{
		VisitID:       visitID,
		To:            outcome,
		MarkCompleted: true,
		AgentNote:     sanitize.TextPtr(in.Notes),
		AgentID:       agentID,
		BuyerID:       visit.BuyerID,
	}
	switch outcome {
	case domain.StatusCompleted:
		params.RankingDelta = s.engine.RankingDelta(reputation.EventCompleteVisit)
		params.IncCompleted = true
		params.IncBuyerCompleted = true
	case domain.StatusNoShowBuyer:
		params.IncBuyerNoShow = true
		params.FlagThreshold = s.engine.Config().NoShowThreshold
	case domain.StatusNoShowAgent:
		params.RankingDelta = s.engine.RankingDelta(reputation.EventNoShow)
		params.IncAgentNoShow = true
	case domain.StatusCancelled:
		params.CancelledBy = &agentID
	}

	result, err := s.store.Transition(ctx, params)
	if err != nil {
		return nil, err
	}
	visit = result.Visit

	s.bus.Publish(ctx, events.VisitCompleted{
		BaseEvent:  events.NewBaseEvent(),
		VisitID:    visit.ID,
		PropertyID: visit.PropertyID,
		BuyerID:    visit.BuyerID,
		AgentID:    visit.AgentID,
		Outcome:    string(outcome),
	})
	if result.BuyerFlagged {
		s.bus.Publish(ctx, events.BuyerFlagged{
			BaseEvent:   events.NewBaseEvent(),
			BuyerID:     visit.BuyerID,
			NoShowCount: result.BuyerNoShowCount,
			Reason:      reputation.FlagReason(result.BuyerNoShowCount),
		})
	}
	return s.outcomeWithWarnings(ctx, visit, agentID), nil
}

// Cancel withdraws an active request. Either participant may cancel;
// cancellation carries no reputation consequences.
func (s *Service) Cancel(ctx context.Context, userID, visitID int64) (*repository.VisitRequest, error) {
	visit, err := s.store.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.BuyerID != userID && visit.AgentID != userID {
		return nil, apperr.PermissionDenied("only a participant can cancel a visit request")
	}

	result, err := s.store.Transition(ctx, repository.TransitionParams{
		VisitID:     visitID,
		To:          domain.StatusCancelled,
		CancelledBy: &userID,
		AgentID:     visit.AgentID,
	})
	if err != nil {
		return nil, err
	}
	visit = result.Visit

	s.bus.Publish(ctx, events.VisitCancelled{
		BaseEvent:   events.NewBaseEvent(),
		VisitID:     visit.ID,
		PropertyID:  visit.PropertyID,
		BuyerID:     visit.BuyerID,
		AgentID:     visit.AgentID,
		CancelledBy: userID,
	})
	return visit, nil
}

// MarkInterested records the purchase interest the buyer expressed after the
// visit. The listing agent records the signal; it is recorded once and repeat
// calls conflict.
func (s *Service) MarkInterested(ctx context.Context, agentID, visitID int64) (*repository.VisitRequest, error) {
	visit, err := s.store.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.AgentID != agentID {
		return nil, apperr.PermissionDenied("only the listing agent can record buyer interest")
	}
	if visit.Status != domain.StatusCompleted {
		return nil, apperr.InvalidState(fmt.Sprintf(
			"interest can only be recorded for completed visits; this visit is %q", visit.Status))
	}

	if err := s.store.MarkBuyerInterested(ctx, visitID); err != nil {
		return nil, err
	}
	visit.IsBuyerInterested = true

	s.bus.Publish(ctx, events.VisitInterestMarked{
		BaseEvent:  events.NewBaseEvent(),
		VisitID:    visit.ID,
		PropertyID: visit.PropertyID,
		BuyerID:    visit.BuyerID,
		AgentID:    visit.AgentID,
	})
	return visit, nil
}

// Get returns a visit request to one of its participants.
func (s *Service) Get(ctx context.Context, userID, visitID int64) (*repository.VisitRequest, error) {
	visit, err := s.store.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.BuyerID != userID && visit.AgentID != userID {
		return nil, apperr.PermissionDenied("you are not a participant in this visit request")
	}
	return visit, nil
}

// ListForBuyer returns the caller's own requests.
func (s *Service) ListForBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]*repository.VisitRequest, error) {
	return s.store.ListByBuyer(ctx, buyerID, normalizeLimit(limit), offset)
}

// ListForAgent returns the requests targeting the caller's listings.
func (s *Service) ListForAgent(ctx context.Context, agentID int64, limit, offset int) ([]*repository.VisitRequest, error) {
	return s.store.ListByAgent(ctx, agentID, normalizeLimit(limit), offset)
}

// authorizeAgent loads the visit, checks the caller is its agent, and runs
// the eligibility gate that protects accept, propose and decline.
func (s *Service) authorizeAgent(ctx context.Context, agentID, visitID int64) (*repository.VisitRequest, error) {
	visit, err := s.authorizeAgentActor(ctx, agentID, visitID)
	if err != nil {
		return nil, err
	}

	agent, err := s.users.GetUserByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	var flagReason string
	if agent.FlagReason != nil {
		flagReason = *agent.FlagReason
	}
	eligibility := s.engine.CheckAgentEligibility(reputation.EligibilityInput{
		Role:       agent.Role,
		KYCStatus:  agent.KYCStatus,
		IsFlagged:  agent.IsFlagged,
		FlagReason: flagReason,
	})
	if !eligibility.Eligible {
		return nil, apperr.NotEligible(eligibility.Reason).
			WithDetails(map[string]string{"actionRequired": eligibility.ActionRequired})
	}
	return visit, nil
}

// authorizeAgentActor checks only that the caller is the visit's agent.
// Used for operations that record reality rather than accept new work.
func (s *Service) authorizeAgentActor(ctx context.Context, agentID, visitID int64) (*repository.VisitRequest, error) {
	visit, err := s.store.GetByID(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if visit.AgentID != agentID {
		return nil, apperr.PermissionDenied("only the listing agent can act on this visit request")
	}
	return visit, nil
}

func (s *Service) outcomeWithWarnings(ctx context.Context, visit *repository.VisitRequest, agentID int64) *TransitionOutcome {
	out := &TransitionOutcome{Visit: visit}
	if s.warnings == nil {
		return out
	}
	warnings, err := s.warnings.AgentWarnings(ctx, agentID)
	if err != nil {
		// Warnings are advisory; never fail the transition response.
		s.log.Warn("agent_warnings_failed", "agent_id", agentID, "error", err.Error())
		return out
	}
	out.Warnings = warnings
	return out
}

func (s *Service) publishConfirmed(ctx context.Context, visit *repository.VisitRequest, confirmedBy int64) {
	window := visit.ConfirmedWindow()
	s.bus.Publish(ctx, events.VisitConfirmed{
		BaseEvent:   events.NewBaseEvent(),
		VisitID:     visit.ID,
		PropertyID:  visit.PropertyID,
		BuyerID:     visit.BuyerID,
		AgentID:     visit.AgentID,
		ConfirmedBy: confirmedBy,
		Date:        window.Date,
		StartTime:   window.Start,
		EndTime:     window.End,
	})
}

func (s *Service) scheduleReminder(ctx context.Context, visit *repository.VisitRequest) {
	if s.scheduler == nil {
		return
	}
	window := visit.ConfirmedWindow()
	if window.IsZero() {
		return
	}
	remindAt := window.StartsAt().Add(-s.leadTime)
	if remindAt.Before(s.now()) {
		return
	}
	if err := s.scheduler.ScheduleVisitReminder(ctx, visit.ID, remindAt); err != nil {
		s.log.NotifyError("reminder", visit.BuyerID, err)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
