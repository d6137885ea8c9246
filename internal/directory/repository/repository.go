// Package repository provides persistence for users and agent profiles.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"propertyhub_backend/platform/apperr"
)

// User roles and KYC statuses.
const (
	RoleBuyer = "buyer"
	RoleAgent = "agent"
	RoleAdmin = "admin"

	KYCStatusPending  = "pending"
	KYCStatusVerified = "verified"
	KYCStatusRejected = "rejected"
)

// User is a platform account.
type User struct {
	ID                   int64
	Email                string
	FullName             string
	Role                 string
	KYCStatus            string
	IsFlagged            bool
	FlagReason           *string
	FlaggedAt            *time.Time
	NoShowCount          int
	CompletedVisitsCount int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// AgentProfile carries the reputation state of an agent account.
type AgentProfile struct {
	UserID               int64
	AgencyName           *string
	RankingScore         float64
	CompletedVisitsCount int
	DeclinedVisitsCount  int
	NoShowCount          int
	UpdatedAt            time.Time
}

// Repository provides user and agent profile persistence backed by Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a directory repository.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetUserByID fetches a user account.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, email, full_name, role, kyc_status, is_flagged, flag_reason,
		       flagged_at, no_show_count, completed_visits_count, created_at, updated_at
		FROM users
		WHERE id = $1`

	var u User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.Role,
		&u.KYCStatus,
		&u.IsFlagged,
		&u.FlagReason,
		&u.FlaggedAt,
		&u.NoShowCount,
		&u.CompletedVisitsCount,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to get user", err)
	}
	return &u, nil
}

// GetAgentProfile fetches the reputation profile for an agent.
func (r *Repository) GetAgentProfile(ctx context.Context, userID int64) (*AgentProfile, error) {
	query := `
		SELECT user_id, agency_name, ranking_score, completed_visits_count,
		       declined_visits_count, no_show_count, updated_at
		FROM agent_profiles
		WHERE user_id = $1`

	var p AgentProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.AgencyName,
		&p.RankingScore,
		&p.CompletedVisitsCount,
		&p.DeclinedVisitsCount,
		&p.NoShowCount,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("agent profile not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to get agent profile", err)
	}
	return &p, nil
}
