// Package repository provides persistence for visit requests. Status
// transitions run in a single transaction together with the reputation
// mutations they trigger, so a crash can never leave a new status without
// its counter updates.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"propertyhub_backend/internal/reputation"
	"propertyhub_backend/internal/visits/domain"
	"propertyhub_backend/platform/apperr"
)

// VisitTypePhysical and VisitTypeVirtual are the supported visit modes.
const (
	VisitTypePhysical = "physical"
	VisitTypeVirtual  = "virtual"
)

// VisitRequest is the persisted negotiation between a buyer and an agent.
// Three window triples track the negotiation: the buyer's preferred slot,
// the agent's counter-proposal, and the slot that was finally confirmed.
type VisitRequest struct {
	ID         int64
	PropertyID int64
	BuyerID    int64
	AgentID    int64
	Status     domain.Status
	VisitType  string

	PreferredDate      time.Time
	PreferredStartTime string
	PreferredEndTime   string

	ProposedDate      *time.Time
	ProposedStartTime *string
	ProposedEndTime   *string

	ConfirmedDate      *time.Time
	ConfirmedStartTime *string
	ConfirmedEndTime   *string

	BuyerNote     *string
	AgentNote     *string
	DeclineReason *string

	IsBuyerInterested bool

	CancelledBy *int64
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PreferredWindow returns the buyer's requested slot.
func (v *VisitRequest) PreferredWindow() domain.TimeWindow {
	return domain.TimeWindow{Date: v.PreferredDate, Start: v.PreferredStartTime, End: v.PreferredEndTime}
}

// ProposedWindow returns the agent's counter-proposal, or a zero window.
func (v *VisitRequest) ProposedWindow() domain.TimeWindow {
	if v.ProposedDate == nil || v.ProposedStartTime == nil || v.ProposedEndTime == nil {
		return domain.TimeWindow{}
	}
	return domain.TimeWindow{Date: *v.ProposedDate, Start: *v.ProposedStartTime, End: *v.ProposedEndTime}
}

// ConfirmedWindow returns the booked slot, or a zero window before
// confirmation.
func (v *VisitRequest) ConfirmedWindow() domain.TimeWindow {
	if v.ConfirmedDate == nil || v.ConfirmedStartTime == nil || v.ConfirmedEndTime == nil {
		return domain.TimeWindow{}
	}
	return domain.TimeWindow{Date: *v.ConfirmedDate, Start: *v.ConfirmedStartTime, End: *v.ConfirmedEndTime}
}

const visitColumns = `
	id, property_id, buyer_id, agent_id, status, visit_type,
	preferred_date, preferred_start_time, preferred_end_time,
	proposed_date, proposed_start_time, proposed_end_time,
	confirmed_date, confirmed_start_time, confirmed_end_time,
	buyer_note, agent_note, decline_reason, is_buyer_interested,
	cancelled_by, confirmed_at, completed_at, cancelled_at, created_at, updated_at`

func scanVisit(row pgx.Row) (*VisitRequest, error) {
	var v VisitRequest
	err := row.Scan(
		&v.ID, &v.PropertyID, &v.BuyerID, &v.AgentID, &v.Status, &v.VisitType,
		&v.PreferredDate, &v.PreferredStartTime, &v.PreferredEndTime,
		&v.ProposedDate, &v.ProposedStartTime, &v.ProposedEndTime,
		&v.ConfirmedDate, &v.ConfirmedStartTime, &v.ConfirmedEndTime,
		&v.BuyerNote, &v.AgentNote, &v.DeclineReason, &v.IsBuyerInterested,
		&v.CancelledBy, &v.ConfirmedAt, &v.CompletedAt, &v.CancelledAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Repository provides visit request persistence backed by Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a visit repository.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending visit request.
func (r *Repository) Create(ctx context.Context, v *VisitRequest) (*VisitRequest, error) {
	query := `
		INSERT INTO visit_requests (
			property_id, buyer_id, agent_id, status, visit_type,
			preferred_date, preferred_start_time, preferred_end_time, buyer_note
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + visitColumns

	created, err := scanVisit(r.db.QueryRow(ctx, query,
		v.PropertyID, v.BuyerID, v.AgentID, domain.StatusPending, v.VisitType,
		v.PreferredDate, v.PreferredStartTime, v.PreferredEndTime, v.BuyerNote,
	))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create visit request", err)
	}
	return created, nil
}

// GetByID fetches a visit request.
func (r *Repository) GetByID(ctx context.Context, id int64) (*VisitRequest, error) {
	query := `SELECT ` + visitColumns + ` FROM visit_requests WHERE id = $1`

	v, err := scanVisit(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("visit request not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to get visit request", err)
	}
	return v, nil
}

// ListByBuyer returns a buyer's requests, newest first.
func (r *Repository) ListByBuyer(ctx context.Context, buyerID int64, limit, offset int) ([]*VisitRequest, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM visit_requests
		WHERE buyer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	return r.list(ctx, query, buyerID, limit, offset)
}

// ListByAgent returns an agent's incoming requests, newest first.
func (r *Repository) ListByAgent(ctx context.Context, agentID int64, limit, offset int) ([]*VisitRequest, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM visit_requests
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	return r.list(ctx, query, agentID, limit, offset)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*VisitRequest, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list visit requests", err)
	}
	defer rows.Close()

	var visits []*VisitRequest
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to scan visit request", err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list visit requests", err)
	}
	return visits, nil
}

// CountActiveForBuyer counts the buyer's requests in an active status.
func (r *Repository) CountActiveForBuyer(ctx context.Context, buyerID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM visit_requests
		WHERE buyer_id = $1 AND status = ANY($2)`

	var count int
	if err := r.db.QueryRow(ctx, query, buyerID, statusStrings(domain.ActiveStatuses)).Scan(&count); err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to count active visit requests", err)
	}
	return count, nil
}

// HasActiveForProperty reports whether the buyer already has an active
// request for the property.
func (r *Repository) HasActiveForProperty(ctx context.Context, buyerID, propertyID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM visit_requests
			WHERE buyer_id = $1 AND property_id = $2 AND status = ANY($3)
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, buyerID, propertyID, statusStrings(domain.ActiveStatuses)).Scan(&exists); err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "failed to check active visit requests", err)
	}
	return exists, nil
}

// MarkBuyerInterested sets the interest flag exactly once. A second call
// returns a conflict so clients can tell the signal was already recorded.
func (r *Repository) MarkBuyerInterested(ctx context.Context, visitID int64) error {
	query := `
		UPDATE visit_requests
		SET is_buyer_interested = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_buyer_interested = FALSE`

	tag, err := r.db.Exec(ctx, query, visitID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to mark interest", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("interest has already been recorded for this visit")
	}
	return nil
}

// TransitionParams describes a status transition and the writes that must
// land with it atomically.
type TransitionParams struct {
	VisitID int64
	To      domain.Status

	// AllowedFrom restricts the source statuses beyond the lifecycle
	// graph, for operations with a narrower precondition (accept only
	// applies to pending; the proposed_reschedule to confirmed edge
	// belongs to the buyer's confirm_proposal).
	AllowedFrom []domain.Status

	// Window applies an agent counter-proposal when transitioning to
	// proposed_reschedule.
	Window *domain.TimeWindow
	// ConfirmFromPreferred books the buyer's preferred slot (accept).
	ConfirmFromPreferred bool
	// ConfirmFromProposal books the agent's proposed slot
	// (confirm_proposal).
	ConfirmFromProposal bool

	AgentNote     *string
	DeclineReason *string
	CancelledBy   *int64
	// MarkCompleted stamps completed_at. Set for completion outcomes,
	// including a visit closed as cancelled through the completion flow.
	MarkCompleted bool

	// Agent reputation writes, applied to agent_profiles.
	AgentID        int64
	RankingDelta   float64
	IncCompleted   bool
	IncDeclined    bool
	IncAgentNoShow bool

	// Buyer behavioral counters, applied to users. FlagThreshold > 0 turns
	// on the auto-flag check after the no-show increment.
	BuyerID           int64
	IncBuyerCompleted bool
	IncBuyerNoShow    bool
	FlagThreshold     int
}

// TransitionResult reports what the transition changed.
type TransitionResult struct {
	Visit            *VisitRequest
	BuyerNoShowCount int
	BuyerFlagged     bool
}

// Transition moves a visit request to a new status. It locks the row, checks
// the lifecycle edge, applies the field updates and the reputation writes,
// all in one transaction. An illegal edge returns an InvalidState error that
// names the current status and the statuses the target is reachable from.
func (r *Repository) Transition(ctx context.Context, p TransitionParams) (*TransitionResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanVisit(tx.QueryRow(ctx,
		`SELECT `+visitColumns+` FROM visit_requests WHERE id = $1 FOR UPDATE`, p.VisitID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("visit request not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to lock visit request", err)
	}

	if !domain.CanTransition(current.Status, p.To) {
		return nil, apperr.InvalidState(domain.InvalidTransitionMessage(current.Status, p.To))
	}
	if len(p.AllowedFrom) > 0 && !statusIn(current.Status, p.AllowedFrom) {
		return nil, apperr.InvalidState(domain.InvalidTransitionMessageFrom(current.Status, p.To, p.AllowedFrom))
	}

	updated, err := applyVisitUpdate(ctx, tx, current, p)
	if err != nil {
		return nil, err
	}

	result := &TransitionResult{Visit: updated}

	if p.RankingDelta != 0 || p.IncCompleted || p.IncDeclined || p.IncAgentNoShow {
		if err := applyAgentWrites(ctx, tx, p); err != nil {
			return nil, err
		}
	}

	if p.IncBuyerCompleted {
		if err := applyBuyerCompleted(ctx, tx, p); err != nil {
			return nil, err
		}
	}

	if p.IncBuyerNoShow {
		if err := applyBuyerNoShow(ctx, tx, p, result); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to commit transition", err)
	}
	return result, nil
}

func applyVisitUpdate(ctx context.Context, tx pgx.Tx, current *VisitRequest, p TransitionParams) (*VisitRequest, error) {
	sets := []string{"status = $2", "updated_at = NOW()"}
	args := []any{p.VisitID, p.To}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if p.Window != nil {
		sets = append(sets,
			"proposed_date = "+arg(p.Window.Date),
			"proposed_start_time = "+arg(p.Window.Start),
			"proposed_end_time = "+arg(p.Window.End),
		)
	}
	if p.ConfirmFromPreferred {
		sets = append(sets,
			"confirmed_date = preferred_date",
			"confirmed_start_time = preferred_start_time",
			"confirmed_end_time = preferred_end_time",
		)
	}
	if p.ConfirmFromProposal {
		sets = append(sets,
			"confirmed_date = proposed_date",
			"confirmed_start_time = proposed_start_time",
			"confirmed_end_time = proposed_end_time",
		)
	}
	if p.AgentNote != nil {
		sets = append(sets, "agent_note = "+arg(*p.AgentNote))
	}
	if p.DeclineReason != nil {
		sets = append(sets, "decline_reason = "+arg(*p.DeclineReason))
	}
	if p.CancelledBy != nil {
		sets = append(sets, "cancelled_by = "+arg(*p.CancelledBy), "cancelled_at = NOW()")
	}
	if p.To == domain.StatusConfirmed {
		sets = append(sets, "confirmed_at = NOW()")
	}
	if p.MarkCompleted {
		sets = append(sets, "completed_at = NOW()")
	}

	query := "UPDATE visit_requests SET " + strings.Join(sets, ", ") +
		" WHERE id = $1 RETURNING " + visitColumns

	updated, err := scanVisit(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update visit request", err)
	}
	return updated, nil
}

func applyAgentWrites(ctx context.Context, tx pgx.Tx, p TransitionParams) error {
	query := `
		UPDATE agent_profiles
		SET ranking_score = LEAST($2, GREATEST($3, ranking_score + $4)),
		    completed_visits_count = completed_visits_count + $5,
		    declined_visits_count = declined_visits_count + $6,
		    no_show_count = no_show_count + $7,
		    updated_at = NOW()
		WHERE user_id = $1`

	tag, err := tx.Exec(ctx, query,
		p.AgentID,
		reputation.MaxRankingScore, reputation.MinRankingScore, p.RankingDelta,
		boolToInt(p.IncCompleted), boolToInt(p.IncDeclined), boolToInt(p.IncAgentNoShow),
	)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to update agent profile", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("agent profile not found")
	}
	return nil
}

func applyBuyerCompleted(ctx context.Context, tx pgx.Tx, p TransitionParams) error {
	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET completed_visits_count = completed_visits_count + 1, updated_at = NOW()
		WHERE id = $1`, p.BuyerID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to update buyer completed count", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("buyer not found")
	}
	return nil
}

func applyBuyerNoShow(ctx context.Context, tx pgx.Tx, p TransitionParams, result *TransitionResult) error {
	var newCount int
	err := tx.QueryRow(ctx, `
		UPDATE users
		SET no_show_count = no_show_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING no_show_count`, p.BuyerID).Scan(&newCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("buyer not found")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to update buyer no-show count", err)
	}
	result.BuyerNoShowCount = newCount

	if p.FlagThreshold > 0 && newCount >= p.FlagThreshold {
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET is_flagged = TRUE, flag_reason = $2, flagged_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND is_flagged = FALSE`,
			p.BuyerID, reputation.FlagReason(newCount))
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to flag buyer", err)
		}
		result.BuyerFlagged = tag.RowsAffected() > 0
	}
	return nil
}

func statusIn(s domain.Status, set []domain.Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
