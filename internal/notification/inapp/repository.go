// Package inapp persists the in-app notification feed.
package inapp

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"propertyhub_backend/platform/apperr"
)

// Notification is a single entry in a user's feed. RelatedID points at the
// visit request the notification is about, when there is one.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"-"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	TypeTag   string     `json:"type"`
	RelatedID *int64     `json:"relatedId,omitempty"`
	IsRead    bool       `json:"isRead"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

// Repository provides notification persistence backed by Postgres.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a notification repository.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a notification into a user's feed.
func (r *Repository) Create(ctx context.Context, n *Notification) (*Notification, error) {
	query := `
		INSERT INTO in_app_notifications (user_id, title, body, type_tag, related_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, n.UserID, n.Title, n.Body, n.TypeTag, n.RelatedID).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to create notification", err)
	}
	return n, nil
}

// ListByUser returns a user's notifications, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Notification, error) {
	query := `
		SELECT id, user_id, title, body, type_tag, related_id, is_read, created_at, read_at
		FROM in_app_notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list notifications", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.TypeTag,
			&n.RelatedID, &n.IsRead, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to scan notification", err)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list notifications", err)
	}
	return out, nil
}

// CountUnread returns the number of unread notifications for a user.
func (r *Repository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM in_app_notifications WHERE user_id = $1 AND is_read = FALSE`,
		userID).Scan(&count)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to count unread notifications", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications as read.
func (r *Repository) MarkRead(ctx context.Context, userID, notificationID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE in_app_notifications
		SET is_read = TRUE, read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_read = FALSE`,
		notificationID, userID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification not found or already read")
	}
	return nil
}

// MarkAllRead marks the user's whole feed as read.
func (r *Repository) MarkAllRead(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE in_app_notifications
		SET is_read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND is_read = FALSE`,
		userID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to mark notifications read", err)
	}
	return nil
}
