package service

import (
	"context"
	"strings"
	"sync"
	"testing"
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
)

// fixedNow is the reference clock for all tests.
var fixedNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

const (
	buyerID    = int64(10)
	agentID    = int64(20)
	propertyID = int64(100)
)

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	visits map[int64]*repository.VisitRequest

	// reputation state mutated by Transition
	agentScore      float64
	agentCompleted  int
	agentDeclined   int
	agentNoShows    int
	buyerCompleted  int
	buyerNoShows    int
	buyerFlagged    bool
	buyerFlagReason string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:     1,
		visits:     make(map[int64]*repository.VisitRequest),
		agentScore: reputation.DefaultRankingScore,
	}
}

func (f *fakeStore) Create(_ context.Context, v *repository.VisitRequest) (*repository.VisitRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *v
	stored.ID = f.nextID
	stored.Status = domain.StatusPending
	stored.CreatedAt = fixedNow
	stored.UpdatedAt = fixedNow
	f.nextID++
	f.visits[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*repository.VisitRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visits[id]
	if !ok {
		return nil, apperr.NotFound("visit request not found")
	}
	copied := *v
	return &copied, nil
}

func (f *fakeStore) ListByBuyer(_ context.Context, buyer int64, _, _ int) ([]*repository.VisitRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.VisitRequest
	for _, v := range f.visits {
		if v.BuyerID == buyer {
			copied := *v
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByAgent(_ context.Context, agent int64, _, _ int) ([]*repository.VisitRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.VisitRequest
	for _, v := range f.visits {
		if v.AgentID == agent {
			copied := *v
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) CountActiveForBuyer(_ context.Context, buyer int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, v := range f.visits {
		if v.BuyerID == buyer && v.Status.IsActive() {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) HasActiveForProperty(_ context.Context, buyer, property int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.visits {
		if v.BuyerID == buyer && v.PropertyID == property && v.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MarkBuyerInterested(_ context.Context, visitID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visits[visitID]
	if !ok {
		return apperr.NotFound("visit request not found")
	}
	if v.IsBuyerInterested {
		return apperr.Conflict("interest has already been recorded for this visit")
	}
	v.IsBuyerInterested = true
	return nil
}

// Transition mirrors the real repository: edge check first, then the field
// and reputation writes as one atomic unit.
func (f *fakeStore) Transition(_ context.Context, p repository.TransitionParams) (*repository.TransitionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.visits[p.VisitID]
	if !ok {
		return nil, apperr.NotFound("visit request not found")
	}
	if !domain.CanTransition(v.Status, p.To) {
		return nil, apperr.InvalidState(domain.InvalidTransitionMessage(v.Status, p.To))
	}
	if len(p.AllowedFrom) > 0 {
		allowed := false
		for _, s := range p.AllowedFrom {
			if v.Status == s {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, apperr.InvalidState(domain.InvalidTransitionMessageFrom(v.Status, p.To, p.AllowedFrom))
		}
	}

	v.Status = p.To
	v.UpdatedAt = fixedNow
	if p.Window != nil {
		d, st, en := p.Window.Date, p.Window.Start, p.Window.End
		v.ProposedDate, v.ProposedStartTime, v.ProposedEndTime = &d, &st, &en
	}
	if p.ConfirmFromPreferred {
		d, st, en := v.PreferredDate, v.PreferredStartTime, v.PreferredEndTime
		v.ConfirmedDate, v.ConfirmedStartTime, v.ConfirmedEndTime = &d, &st, &en
	}
	if p.ConfirmFromProposal {
		d, st, en := *v.ProposedDate, *v.ProposedStartTime, *v.ProposedEndTime
		v.ConfirmedDate, v.ConfirmedStartTime, v.ConfirmedEndTime = &d, &st, &en
	}
	if p.AgentNote != nil {
		v.AgentNote = p.AgentNote
	}
	if p.DeclineReason != nil {
		v.DeclineReason = p.DeclineReason
	}
	if p.CancelledBy != nil {
		v.CancelledBy = p.CancelledBy
		at := fixedNow
		v.CancelledAt = &at
	}
	if p.To == domain.StatusConfirmed {
		at := fixedNow
		v.ConfirmedAt = &at
	}
	if p.MarkCompleted {
		at := fixedNow
		v.CompletedAt = &at
	}

	f.agentScore = reputation.ApplyDelta(f.agentScore, p.RankingDelta)
	if p.IncCompleted {
		f.agentCompleted++
	}
	if p.IncDeclined {
		f.agentDeclined++
	}
	if p.IncAgentNoShow {
		f.agentNoShows++
	}

	result := &repository.TransitionResult{}
	if p.IncBuyerCompleted {
		f.buyerCompleted++
	}
	if p.IncBuyerNoShow {
		f.buyerNoShows++
		result.BuyerNoShowCount = f.buyerNoShows
		if p.FlagThreshold > 0 && f.buyerNoShows >= p.FlagThreshold && !f.buyerFlagged {
			f.buyerFlagged = true
			f.buyerFlagReason = reputation.FlagReason(f.buyerNoShows)
			result.BuyerFlagged = true
		}
	}
	copied := *v
	result.Visit = &copied
	return result, nil
}

type fakeProperties struct {
	props map[int64]*catalog.Property
}

func (f *fakeProperties) GetByID(_ context.Context, id int64) (*catalog.Property, error) {
	p, ok := f.props[id]
	if !ok {
		return nil, apperr.NotFound("property not found")
	}
	return p, nil
}

type fakeUsers struct {
	users map[int64]*directory.User
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (*directory.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	copied := *u
	return &copied, nil
}

type fakeWarnings struct {
	warnings []reputation.Warning
}

func (f *fakeWarnings) AgentWarnings(_ context.Context, _ int64) ([]reputation.Warning, error) {
	return f.warnings, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(_ context.Context, e events.Event) error {
	b.Publish(nil, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventName()
	}
	return out
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []time.Time
}

func (f *fakeScheduler) ScheduleVisitReminder(_ context.Context, _ int64, remindAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, remindAt)
	return nil
}

type fixture struct {
	svc       *Service
	store     *fakeStore
	users     *fakeUsers
	props     *fakeProperties
	bus       *recordingBus
	scheduler *fakeScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeStore()
	props := &fakeProperties{props: map[int64]*catalog.Property{
		propertyID: {
			ID:             propertyID,
			AgentID:        agentID,
			Status:         catalog.PropertyStatusAvailable,
			ApprovalStatus: catalog.ApprovalStatusApproved,
		},
	}}
	users := &fakeUsers{users: map[int64]*directory.User{
		buyerID: {ID: buyerID, Role: directory.RoleBuyer},
		agentID: {ID: agentID, Role: directory.RoleAgent, KYCStatus: directory.KYCStatusVerified},
	}}
	bus := &recordingBus{}
	scheduler := &fakeScheduler{}

	svc := New(store, props, users, &fakeWarnings{}, reputation.New(reputation.DefaultConfig()),
		bus, scheduler, 24*time.Hour, logger.New("test"))
	svc.now = func() time.Time { return fixedNow }

	return &fixture{svc: svc, store: store, users: users, props: props, bus: bus, scheduler: scheduler}
}

func futureRequest() transport.CreateVisitRequest {
	return transport.CreateVisitRequest{
		PropertyID: propertyID,
		VisitType:  repository.VisitTypePhysical,
		Date:       fixedNow.AddDate(0, 0, 7),
		StartTime:  "10:00",
		EndTime:    "11:00",
	}
}

func mustCreate(t *testing.T, f *fixture) *repository.VisitRequest {
	t.Helper()
	visit, err := f.svc.Create(context.Background(), buyerID, futureRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return visit
}

func TestCreateAndAcceptFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	visit := mustCreate(t, f)
	if visit.Status != domain.StatusPending {
		t.Fatalf("status after create = %s, want pending", visit.Status)
	}
	if visit.AgentID != agentID {
		t.Fatalf("agent resolved from property = %d, want %d", visit.AgentID, agentID)
	}

	confirmed, err := f.svc.Accept(ctx, agentID, visit.ID, transport.AcceptVisitRequest{})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if confirmed.Status != domain.StatusConfirmed {
		t.Errorf("status after accept = %s, want confirmed", confirmed.Status)
	}
	if confirmed.ConfirmedAt == nil {
		t.Error("confirmed visit missing confirmed_at")
	}
	if confirmed.ConfirmedStartTime == nil || *confirmed.ConfirmedStartTime != "10:00" {
		t.Errorf("confirmed window not copied from preferred: %+v", confirmed)
	}

	names := f.bus.names()
	want := []string{"visits.requested", "visits.confirmed"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("published events %v, want %v", names, want)
	}

	if len(f.scheduler.scheduled) != 1 {
		t.Fatalf("scheduled %d reminders, want 1", len(f.scheduler.scheduled))
	}
	wantRemind := time.Date(2026, 9, 8, 10, 0, 0, 0, time.UTC).Add(-24 * time.Hour)
	if !f.scheduler.scheduled[0].Equal(wantRemind) {
		t.Errorf("reminder at %v, want %v", f.scheduler.scheduled[0], wantRemind)
	}

	// Accepting the agent does not touch reputation.
	if f.store.agentScore != 100 || f.store.agentCompleted != 0 {
		t.Errorf("accept changed reputation: score %v completed %d", f.store.agentScore, f.store.agentCompleted)
	}
}

func TestRescheduleRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	visit := mustCreate(t, f)

	proposed, err := f.svc.ProposeReschedule(ctx, agentID, visit.ID, transport.ProposeRescheduleRequest{
		Date:      fixedNow.AddDate(0, 0, 9),
		StartTime: "14:00",
		EndTime:   "15:00",
	})
	if err != nil {
		t.Fatalf("ProposeReschedule: %v", err)
	}
	if proposed.Status != domain.StatusProposedReschedule {
		t.Fatalf("status = %s, want proposed_reschedule", proposed.Status)
	}
	if proposed.ProposedStartTime == nil || *proposed.ProposedStartTime != "14:00" {
		t.Fatalf("proposed window not stored: %+v", proposed)
	}

	// The agent may counter again while still unanswered.
	again, err := f.svc.ProposeReschedule(ctx, agentID, visit.ID, transport.ProposeRescheduleRequest{
		Date:      fixedNow.AddDate(0, 0, 10),
		StartTime: "9:00",
		EndTime:   "10:00",
	})
	if err != nil {
		t.Fatalf("second ProposeReschedule: %v", err)
	}
	if *again.ProposedStartTime != "9:00" {
		t.Fatalf("second proposal did not replace the first: %+v", again)
	}

	confirmed, err := f.svc.ConfirmProposal(ctx, buyerID, visit.ID)
	if err != nil {
		t.Fatalf("ConfirmProposal: %v", err)
	}
	if confirmed.Status != domain.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}
	if confirmed.ConfirmedStartTime == nil || *confirmed.ConfirmedStartTime != "9:00" ||
		confirmed.ConfirmedEndTime == nil || *confirmed.ConfirmedEndTime != "10:00" {
		t.Errorf("proposal not promoted into confirmed slot: %+v", confirmed)
	}
	if confirmed.ProposedStartTime == nil {
		t.Error("proposed window should stay recorded after confirmation")
	}
	if len(f.scheduler.scheduled) != 1 {
		t.Errorf("scheduled %d reminders, want 1", len(f.scheduler.scheduled))
	}
}

func TestDeclineLowersRankingAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	visit := mustCreate(t, f)

	out, err := f.svc.Decline(ctx, agentID, visit.ID, transport.DeclineVisitRequest{
		Reason: "The property is under offer this week",
	})
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if out.Visit.Status != domain.StatusDeclined {
		t.Errorf("status = %s, want declined", out.Visit.Status)
	}
	if out.Visit.DeclineReason == nil || *out.Visit.DeclineReason == "" {
		t.Error("decline reason not stored")
	}
	if f.store.agentScore != 99 {
		t.Errorf("agent score = %v, want 99", f.store.agentScore)
	}
	if f.store.agentDeclined != 1 {
		t.Errorf("declined count = %d, want 1", f.store.agentDeclined)
	}
}

func TestCompleteOutcomes(t *testing.T) {
	confirm := func(t *testing.T, f *fixture) *repository.VisitRequest {
		visit := mustCreate(t, f)
		confirmed, err := f.svc.Accept(context.Background(), agentID, visit.ID, transport.AcceptVisitRequest{})
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		return confirmed
	}

	t.Run("completed rewards agent", func(t *testing.T) {
		f := newFixture(t)
		visit := confirm(t, f)

		notes := "Buyer arrived on time, asked about the garden"
		out, err := f.svc.Complete(context.Background(), agentID, visit.ID,
			transport.CompleteVisitRequest{Outcome: "completed", Notes: &notes})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if out.Visit.Status != domain.StatusCompleted || out.Visit.CompletedAt == nil {
			t.Errorf("visit = %+v, want completed with timestamp", out.Visit)
		}
		if out.Visit.AgentNote == nil || *out.Visit.AgentNote != notes {
			t.Errorf("agent note = %v, want the completion notes stored", out.Visit.AgentNote)
		}
		if f.store.agentScore != 100 {
			t.Errorf("score = %v, want clamped at 100", f.store.agentScore)
		}
		if f.store.agentCompleted != 1 {
			t.Errorf("agent completed count = %d, want 1", f.store.agentCompleted)
		}
		if f.store.buyerCompleted != 1 {
			t.Errorf("buyer completed count = %d, want 1", f.store.buyerCompleted)
		}
	})

	t.Run("agent no-show penalizes agent", func(t *testing.T) {
		f := newFixture(t)
		visit := confirm(t, f)

		_, err := f.svc.Complete(context.Background(), agentID, visit.ID,
			transport.CompleteVisitRequest{Outcome: "no_show_agent"})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if f.store.agentScore != 95 {
			t.Errorf("score = %v, want 95", f.store.agentScore)
		}
		if f.store.agentNoShows != 1 {
			t.Errorf("agent no-show count = %d, want 1", f.store.agentNoShows)
		}
		if f.store.buyerNoShows != 0 {
			t.Errorf("buyer no-show count = %d, want 0", f.store.buyerNoShows)
		}
	})

	t.Run("third buyer no-show flags the buyer", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			visit := confirm(t, f)
			_, err := f.svc.Complete(ctx, agentID, visit.ID,
				transport.CompleteVisitRequest{Outcome: "no_show_buyer"})
			if err != nil {
				t.Fatalf("Complete #%d: %v", i+1, err)
			}
			if i < 2 && f.store.buyerFlagged {
				t.Fatalf("buyer flagged after %d no-shows", i+1)
			}
		}

		if !f.store.buyerFlagged {
			t.Fatal("buyer not flagged after third no-show")
		}
		if !strings.Contains(f.store.buyerFlagReason, "3 no-shows") {
			t.Errorf("flag reason = %q, want it to mention 3 no-shows", f.store.buyerFlagReason)
		}

		names := f.bus.names()
		flagged := 0
		for _, n := range names {
			if n == (events.BuyerFlagged{}).EventName() {
				flagged++
			}
		}
		if flagged != 1 {
			t.Errorf("published %d flag events, want 1", flagged)
		}
	})

	t.Run("cancel outcome carries no reputation effect", func(t *testing.T) {
		f := newFixture(t)
		visit := confirm(t, f)

		out, err := f.svc.Complete(context.Background(), agentID, visit.ID,
			transport.CompleteVisitRequest{Outcome: "cancelled"})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if out.Visit.Status != domain.StatusCancelled {
			t.Errorf("status = %s, want cancelled", out.Visit.Status)
		}
		if f.store.agentScore != 100 || f.store.agentCompleted != 0 ||
			f.store.buyerCompleted != 0 || f.store.buyerNoShows != 0 {
			t.Error("cancel outcome must not touch reputation")
		}
	})
}

func TestInvalidTransitionsLeaveVisitUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	visit := mustCreate(t, f)

	// Completing a pending visit is not a legal edge.
	_, err := f.svc.Complete(ctx, agentID, visit.ID, transport.CompleteVisitRequest{Outcome: "completed"})
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("Complete on pending: err = %v, want invalid state", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "pending") || !strings.Contains(msg, "confirmed") {
		t.Errorf("error %q must name current and allowed statuses", msg)
	}

	unchanged, _ := f.store.GetByID(ctx, visit.ID)
	if unchanged.Status != domain.StatusPending || unchanged.CompletedAt != nil {
		t.Errorf("failed transition mutated the visit: %+v", unchanged)
	}
	if f.store.agentScore != 100 {
		t.Errorf("failed transition touched reputation: score %v", f.store.agentScore)
	}

	// A declined visit is terminal.
	if _, err := f.svc.Decline(ctx, agentID, visit.ID, transport.DeclineVisitRequest{
		Reason: "No longer taking viewings here",
	}); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	_, err = f.svc.Accept(ctx, agentID, visit.ID, transport.AcceptVisitRequest{})
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Errorf("Accept on declined: err = %v, want invalid state", err)
	}
}

func TestAcceptRequiresPendingStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	visit := mustCreate(t, f)

	if _, err := f.svc.ProposeReschedule(ctx, agentID, visit.ID, transport.ProposeRescheduleRequest{
		Date:      fixedNow.AddDate(0, 0, 9),
		StartTime: "14:00",
		EndTime:   "15:00",
	}); err != nil {
		t.Fatalf("ProposeReschedule: %v", err)
	}

	// Once a counter-proposal is out, the original request can no longer
	// be accepted as-is; only the buyer confirming the proposal books it.
	_, err := f.svc.Accept(ctx, agentID, visit.ID, transport.AcceptVisitRequest{})
	if !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("Accept on proposed_reschedule: err = %v, want invalid state", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "pending") {
		t.Errorf("error %q should name the pending precondition", msg)
	}
}

func TestCreateGuards(t *testing.T) {
	t.Run("rejects past window", func(t *testing.T) {
		f := newFixture(t)
		in := futureRequest()
		in.Date = fixedNow.AddDate(0, 0, -1)
		if _, err := f.svc.Create(context.Background(), buyerID, in); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("err = %v, want validation", err)
		}
	})

	t.Run("rejects inverted window", func(t *testing.T) {
		f := newFixture(t)
		in := futureRequest()
		in.StartTime, in.EndTime = "11:00", "10:00"
		if _, err := f.svc.Create(context.Background(), buyerID, in); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("err = %v, want validation", err)
		}
	})

	t.Run("rejects duplicate active request", func(t *testing.T) {
		f := newFixture(t)
		mustCreate(t, f)
		_, err := f.svc.Create(context.Background(), buyerID, futureRequest())
		if !apperr.Is(err, apperr.KindConflict) {
			t.Errorf("err = %v, want conflict", err)
		}
	})

	t.Run("enforces active request cap", func(t *testing.T) {
		f := newFixture(t)
		for i := int64(0); i < 5; i++ {
			id := propertyID + 1 + i
			f.props.props[id] = &catalog.Property{
				ID:             id,
				AgentID:        agentID,
				Status:         catalog.PropertyStatusAvailable,
				ApprovalStatus: catalog.ApprovalStatusApproved,
			}
			in := futureRequest()
			in.PropertyID = id
			if _, err := f.svc.Create(context.Background(), buyerID, in); err != nil {
				t.Fatalf("Create #%d: %v", i+1, err)
			}
		}

		f.props.props[propertyID+9] = &catalog.Property{
			ID:             propertyID + 9,
			AgentID:        agentID,
			Status:         catalog.PropertyStatusAvailable,
			ApprovalStatus: catalog.ApprovalStatusApproved,
		}
		in := futureRequest()
		in.PropertyID = propertyID + 9
		_, err := f.svc.Create(context.Background(), buyerID, in)
		if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("err = %v, want conflict at cap", err)
		}
		if !strings.Contains(err.Error(), "5") {
			t.Errorf("cap error %q should mention the limit", err.Error())
		}
	})

	t.Run("rejects unavailable property", func(t *testing.T) {
		f := newFixture(t)
		f.props.props[propertyID].Status = "sold"
		if _, err := f.svc.Create(context.Background(), buyerID, futureRequest()); !apperr.Is(err, apperr.KindConflict) {
			t.Errorf("err = %v, want conflict", err)
		}
	})

	t.Run("rejects flagged buyer", func(t *testing.T) {
		f := newFixture(t)
		reason := "Exceeded no-show threshold (3 no-shows)"
		f.users.users[buyerID].IsFlagged = true
		f.users.users[buyerID].FlagReason = &reason
		_, err := f.svc.Create(context.Background(), buyerID, futureRequest())
		if !apperr.Is(err, apperr.KindConflict) {
			t.Errorf("err = %v, want conflict", err)
		}
		if err != nil && !strings.Contains(err.Error(), "3 no-shows") {
			t.Errorf("error %q should carry the flag reason", err.Error())
		}
	})

	t.Run("rejects non-buyer caller", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Create(context.Background(), agentID, futureRequest())
		if !apperr.Is(err, apperr.KindPermissionDenied) {
			t.Errorf("err = %v, want permission denied", err)
		}
	})
}

func TestAgentEligibilityGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	visit := mustCreate(t, f)

	f.users.users[agentID].KYCStatus = directory.KYCStatusPending
	_, err := f.svc.Accept(ctx, agentID, visit.ID, transport.AcceptVisitRequest{})
	if !apperr.Is(err, apperr.KindNotEligible) {
		t.Fatalf("Accept with pending KYC: err = %v, want not eligible", err)
	}
	var details map[string]string
	if appErr, ok := err.(*apperr.Error); ok {
		details, _ = appErr.Details.(map[string]string)
	}
	if details["actionRequired"] != reputation.ActionCompleteKYC {
		t.Errorf("details = %v, want actionRequired complete_kyc", details)
	}

	// The gate protects accepting new work, not recording outcomes.
	f.users.users[agentID].KYCStatus = directory.KYCStatusVerified
	if _, err := f.svc.Accept(ctx, agentID, visit.ID, transport.AcceptVisitRequest{}); err != nil {
		t.Fatalf("Accept after verification: %v", err)
	}
	f.users.users[agentID].KYCStatus = directory.KYCStatusPending
	if _, err := f.svc.Complete(ctx, agentID, visit.ID,
		transport.CompleteVisitRequest{Outcome: "completed"}); err != nil {
		t.Fatalf("Complete must not run the eligibility gate: %v", err)
	}
}

func TestAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	visit := mustCreate(t, f)
	stranger := int64(999)
	f.users.users[stranger] = &directory.User{ID: stranger, Role: directory.RoleAgent, KYCStatus: directory.KYCStatusVerified}

	if _, err := f.svc.Accept(ctx, stranger, visit.ID, transport.AcceptVisitRequest{}); !apperr.Is(err, apperr.KindPermissionDenied) {
		t.Errorf("Accept by stranger: err = %v, want permission denied", err)
	}
	if _, err := f.svc.ConfirmProposal(ctx, stranger, visit.ID); !apperr.Is(err, apperr.KindPermissionDenied) {
		t.Errorf("ConfirmProposal by stranger: err = %v, want permission denied", err)
	}
	if _, err := f.svc.Cancel(ctx, stranger, visit.ID); !apperr.Is(err, apperr.KindPermissionDenied) {
		t.Errorf("Cancel by stranger: err = %v, want permission denied", err)
	}
	if _, err := f.svc.Get(ctx, stranger, visit.ID); !apperr.Is(err, apperr.KindPermissionDenied) {
		t.Errorf("Get by stranger: err = %v, want permission denied", err)
	}

	// Both participants may cancel.
	if _, err := f.svc.Cancel(ctx, buyerID, visit.ID); err != nil {
		t.Errorf("Cancel by buyer: %v", err)
	}
}

func TestMarkInterested(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	visit := mustCreate(t, f)

	// Not yet completed.
	if _, err := f.svc.MarkInterested(ctx, agentID, visit.ID); !apperr.Is(err, apperr.KindInvalidState) {
		t.Fatalf("MarkInterested on pending: err = %v, want invalid state", err)
	}

	if _, err := f.svc.Accept(ctx, agentID, visit.ID, transport.AcceptVisitRequest{}); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := f.svc.Complete(ctx, agentID, visit.ID,
		transport.CompleteVisitRequest{Outcome: "completed"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	marked, err := f.svc.MarkInterested(ctx, agentID, visit.ID)
	if err != nil {
		t.Fatalf("MarkInterested: %v", err)
	}
	if !marked.IsBuyerInterested {
		t.Error("interest flag not set")
	}

	// The signal is recorded once.
	if _, err := f.svc.MarkInterested(ctx, agentID, visit.ID); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("second MarkInterested: err = %v, want conflict", err)
	}

	// The listing agent records the signal; the buyer cannot.
	if _, err := f.svc.MarkInterested(ctx, buyerID, visit.ID); !apperr.Is(err, apperr.KindPermissionDenied) {
		t.Errorf("MarkInterested by buyer: err = %v, want permission denied", err)
	}
}

func TestReminderNotScheduledWhenTooClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := futureRequest()
	in.Date = fixedNow.AddDate(0, 0, 0)
	in.StartTime, in.EndTime = "18:00", "19:00"
	visit, err := f.svc.Create(ctx, buyerID, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Accept(ctx, agentID, visit.ID, transport.AcceptVisitRequest{}); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(f.scheduler.scheduled) != 0 {
		t.Errorf("scheduled %d reminders for a same-day visit inside the lead window, want 0", len(f.scheduler.scheduled))
	}
}
