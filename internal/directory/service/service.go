// Package service implements account standing queries: agent eligibility,
// advisory warnings and buyer standing.
package service

import (
	"context"

	"propertyhub_backend/internal/directory/repository"
	"propertyhub_backend/internal/reputation"
	"propertyhub_backend/platform/apperr"
	"propertyhub_backend/platform/logger"
)

// UserStore is the persistence this service needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*repository.User, error)
	GetAgentProfile(ctx context.Context, userID int64) (*repository.AgentProfile, error)
}

// AgentStanding is the full reputation view an agent sees for themselves.
type AgentStanding struct {
	RankingScore         float64              `json:"rankingScore"`
	CompletedVisitsCount int                  `json:"completedVisitsCount"`
	DeclinedVisitsCount  int                  `json:"declinedVisitsCount"`
	NoShowCount          int                  `json:"noShowCount"`
	Warnings             []reputation.Warning `json:"warnings"`
}

// BuyerStanding is what a buyer sees about their own account state.
type BuyerStanding struct {
	NoShowCount          int     `json:"noShowCount"`
	CompletedVisitsCount int     `json:"completedVisitsCount"`
	IsFlagged            bool    `json:"isFlagged"`
	FlagReason           *string `json:"flagReason,omitempty"`
}

// Service answers standing and eligibility queries.
type Service struct {
	store  UserStore
	engine *reputation.Engine
	log    *logger.Logger
}

// New creates the directory service.
func New(store UserStore, engine *reputation.Engine, log *logger.Logger) *Service {
	return &Service{store: store, engine: engine, log: log}
}

// CheckEligibility evaluates whether the user may act as an agent.
func (s *Service) CheckEligibility(ctx context.Context, userID int64) (reputation.Eligibility, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return reputation.Eligibility{}, err
	}

	var flagReason string
	if user.FlagReason != nil {
		flagReason = *user.FlagReason
	}

	return s.engine.CheckAgentEligibility(reputation.EligibilityInput{
		Role:       user.Role,
		KYCStatus:  user.KYCStatus,
		IsFlagged:  user.IsFlagged,
		FlagReason: flagReason,
	}), nil
}

// AgentWarnings returns the current advisory warnings for an agent.
// Warnings are computed on read and never stored.
func (s *Service) AgentWarnings(ctx context.Context, userID int64) ([]reputation.Warning, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != repository.RoleAgent {
		return nil, apperr.PermissionDenied("only agents have reputation warnings")
	}

	profile, err := s.store.GetAgentProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	warnings := s.engine.Warnings(reputation.Counters{
		NoShowCount:          profile.NoShowCount,
		DeclinedVisitsCount:  profile.DeclinedVisitsCount,
		CompletedVisitsCount: profile.CompletedVisitsCount,
	}, profile.RankingScore)
	return warnings, nil
}

// GetAgentStanding returns the agent's counters, score and warnings.
func (s *Service) GetAgentStanding(ctx context.Context, userID int64) (*AgentStanding, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != repository.RoleAgent {
		return nil, apperr.PermissionDenied("only agents have a reputation standing")
	}

	profile, err := s.store.GetAgentProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	counters := reputation.Counters{
		NoShowCount:          profile.NoShowCount,
		DeclinedVisitsCount:  profile.DeclinedVisitsCount,
		CompletedVisitsCount: profile.CompletedVisitsCount,
	}
	return &AgentStanding{
		RankingScore:         profile.RankingScore,
		CompletedVisitsCount: profile.CompletedVisitsCount,
		DeclinedVisitsCount:  profile.DeclinedVisitsCount,
		NoShowCount:          profile.NoShowCount,
		Warnings:             s.engine.Warnings(counters, profile.RankingScore),
	}, nil
}

// GetBuyerStanding returns the buyer-facing view of account state.
func (s *Service) GetBuyerStanding(ctx context.Context, userID int64) (*BuyerStanding, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BuyerStanding{
		NoShowCount:          user.NoShowCount,
		CompletedVisitsCount: user.CompletedVisitsCount,
		IsFlagged:            user.IsFlagged,
		FlagReason:           user.FlagReason,
	}, nil
}
