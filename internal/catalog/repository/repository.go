// Package repository provides read access to the property catalog for
// other modules. Listing management itself lives outside this service.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"propertyhub_backend/platform/apperr"
)

// Property statuses relevant to visit scheduling.
const (
	PropertyStatusAvailable = "available"
	ApprovalStatusApproved  = "approved"
)

// Property is the catalog projection visits need.
type Property struct {
	ID             int64
	AgentID        int64
	Title          string
	City           string
	Status         string
	ApprovalStatus string
	CreatedAt      time.Time
}

// IsVisitable reports whether the property can receive visit requests.
func (p Property) IsVisitable() bool {
	return p.Status == PropertyStatusAvailable && p.ApprovalStatus == ApprovalStatusApproved
}

// Repository provides property lookups backed by Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a property repository.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByID fetches a property by its ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Property, error) {
	query := `
		SELECT id, agent_id, title, city, status, approval_status, created_at
		FROM properties
		WHERE id = $1`

	var p Property
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.AgentID,
		&p.Title,
		&p.City,
		&p.Status,
		&p.ApprovalStatus,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("property not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to get property", err)
	}
	return &p, nil
}
