// Package transport defines the HTTP request and response shapes for the
// visits module.
package transport

import (
	"time"

	"propertyhub_backend/internal/visits/repository"
)

// CreateVisitRequest is the payload for requesting a visit.
type CreateVisitRequest struct {
	PropertyID int64     `json:"propertyId" validate:"required,gt=0"`
	VisitType  string    `json:"visitType" validate:"required,oneof=physical virtual"`
	Date       time.Time `json:"date" validate:"required"`
	StartTime  string    `json:"startTime" validate:"required,clocktime"`
	EndTime    string    `json:"endTime" validate:"required,clocktime"`
	BuyerNote  *string   `json:"buyerNote,omitempty" validate:"omitempty,max=1000"`
}

// AcceptVisitRequest is the payload for an agent accepting a request.
type AcceptVisitRequest struct {
	AgentNote *string `json:"agentNote,omitempty" validate:"omitempty,max=1000"`
}

// ProposeRescheduleRequest is the payload for an agent counter-proposal.
type ProposeRescheduleRequest struct {
	Date      time.Time `json:"date" validate:"required"`
	StartTime string    `json:"startTime" validate:"required,clocktime"`
	EndTime   string    `json:"endTime" validate:"required,clocktime"`
	AgentNote *string   `json:"agentNote,omitempty" validate:"omitempty,max=1000"`
}

// DeclineVisitRequest is the payload for an agent declining a request.
// A substantive reason is required; it is shown to the buyer.
type DeclineVisitRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=500"`
}

// CompleteVisitRequest records the outcome of a confirmed visit, with
// optional agent notes about how it went.
type CompleteVisitRequest struct {
	Outcome string  `json:"outcome" validate:"required,oneof=completed no_show_buyer no_show_agent cancelled"`
	Notes   *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ListVisitsQuery is the pagination query for list endpoints.
type ListVisitsQuery struct {
	Limit  int `form:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `form:"offset" validate:"omitempty,min=0"`
}

// VisitResponse is the API projection of a visit request.
type VisitResponse struct {
	ID         int64  `json:"id"`
	PropertyID int64  `json:"propertyId"`
	BuyerID    int64  `json:"buyerId"`
	AgentID    int64  `json:"agentId"`
	Status     string `json:"status"`
	VisitType  string `json:"visitType"`

	PreferredDate      time.Time `json:"preferredDate"`
	PreferredStartTime string    `json:"preferredStartTime"`
	PreferredEndTime   string    `json:"preferredEndTime"`

	ProposedDate      *time.Time `json:"proposedDate,omitempty"`
	ProposedStartTime *string    `json:"proposedStartTime,omitempty"`
	ProposedEndTime   *string    `json:"proposedEndTime,omitempty"`

	ConfirmedDate      *time.Time `json:"confirmedDate,omitempty"`
	ConfirmedStartTime *string    `json:"confirmedStartTime,omitempty"`
	ConfirmedEndTime   *string    `json:"confirmedEndTime,omitempty"`

	BuyerNote     *string `json:"buyerNote,omitempty"`
	AgentNote     *string `json:"agentNote,omitempty"`
	DeclineReason *string `json:"declineReason,omitempty"`

	IsBuyerInterested bool `json:"isBuyerInterested"`

	CancelledBy *int64     `json:"cancelledBy,omitempty"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ToVisitResponse maps a persisted visit request to its API projection.
func ToVisitResponse(v *repository.VisitRequest) VisitResponse {
	return VisitResponse{
		ID:                 v.ID,
		PropertyID:         v.PropertyID,
		BuyerID:            v.BuyerID,
		AgentID:            v.AgentID,
		Status:             string(v.Status),
		VisitType:          v.VisitType,
		PreferredDate:      v.PreferredDate,
		PreferredStartTime: v.PreferredStartTime,
		PreferredEndTime:   v.PreferredEndTime,
		ProposedDate:       v.ProposedDate,
		ProposedStartTime:  v.ProposedStartTime,
		ProposedEndTime:    v.ProposedEndTime,
		ConfirmedDate:      v.ConfirmedDate,
		ConfirmedStartTime: v.ConfirmedStartTime,
		ConfirmedEndTime:   v.ConfirmedEndTime,
		BuyerNote:          v.BuyerNote,
		AgentNote:          v.AgentNote,
		DeclineReason:      v.DeclineReason,
		IsBuyerInterested:  v.IsBuyerInterested,
		CancelledBy:        v.CancelledBy,
		ConfirmedAt:        v.ConfirmedAt,
		CompletedAt:        v.CompletedAt,
		CancelledAt:        v.CancelledAt,
		CreatedAt:          v.CreatedAt,
		UpdatedAt:          v.UpdatedAt,
	}
}

// ToVisitResponses maps a slice of visit requests.
func ToVisitResponses(visits []*repository.VisitRequest) []VisitResponse {
	out := make([]VisitResponse, len(visits))
	for i, v := range visits {
		out[i] = ToVisitResponse(v)
	}
	return out
}
