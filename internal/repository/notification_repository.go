package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-vm-acceptance/internal/apperr"
	"github.com/pesio-ai/be-vm-acceptance/internal/store"
)

// NotificationRepository stores per-user notification rows. Rows are created
// by the dispatcher, toggled read/unread by their owner, and deleted by the
// owner individually or in bulk.
type NotificationRepository struct {
	db *store.DB
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db *store.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, type, title, message,
       related_type, related_id, priority, is_read, read_at, metadata, created_at`

// Insert writes a notification row.
func (r *NotificationRepository) Insert(ctx context.Context, n *Notification) error {
	n.ID = uuid.NewString()

	query := `
		INSERT INTO notifications (id, user_id, type, title, message,
		                           related_type, related_id, priority, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		n.RelatedType,
		n.RelatedID,
		n.Priority,
		n.Metadata,
	).Scan(&n.CreatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to create notification")
	}
	return nil
}

// ListByUser returns a user's notifications, newest first, with an exact
// total count. unreadOnly narrows to unread rows.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*Notification, int64, error) {
	filters := store.NewFilters().Eq("user_id", userID)
	if unreadOnly {
		filters.Eq("is_read", false)
	}
	where, args := filters.SQL(1)

	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to count notifications")
	}

	page, pageArgs := store.Page(len(args)+1, limit, offset)
	query := `SELECT ` + notificationColumns + ` FROM notifications` + where +
		` ORDER BY created_at DESC` + page

	rows, err := r.db.Query(ctx, query, append(args, pageArgs...)...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to list notifications")
	}
	defer rows.Close()

	items := make([]*Notification, 0)
	for rows.Next() {
		n := &Notification{}
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.RelatedType,
			&n.RelatedID,
			&n.Priority,
			&n.IsRead,
			&n.ReadAt,
			&n.Metadata,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to scan notification")
		}
		items = append(items, n)
	}

	return items, total, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to count unread notifications")
	}
	return count, nil
}

// MarkRead marks one notification read. Scoped to the owning user so one
// user cannot toggle another's rows.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	return r.setRead(ctx, userID, id, true)
}

// MarkUnread marks one notification unread.
func (r *NotificationRepository) MarkUnread(ctx context.Context, userID, id string) error {
	return r.setRead(ctx, userID, id, false)
}

func (r *NotificationRepository) setRead(ctx context.Context, userID, id string, read bool) error {
	query := `
		UPDATE notifications
		SET is_read = $3,
		    read_at = CASE WHEN $3 THEN NOW() ELSE NULL END
		WHERE id = $1 AND user_id = $2
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, userID, read).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("notification", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to update notification")
	}
	return nil
}

// MarkAllRead marks every unread notification of a user read and returns
// how many rows changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = NOW() WHERE user_id = $1 AND is_read = FALSE`,
		userID)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to mark notifications read")
	}
	return tag.RowsAffected(), nil
}

// Delete removes one notification owned by the user.
func (r *NotificationRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrCodeInternal, "failed to delete notification")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification", id)
	}
	return nil
}

// DeleteAllForUser clears a user's notifications and returns how many rows
// were removed.
func (r *NotificationRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.ErrCodeInternal, "failed to clear notifications")
	}
	return tag.RowsAffected(), nil
}
