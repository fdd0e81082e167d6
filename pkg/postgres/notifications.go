package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Majulish/cookie/pkg/core/model"
)

const notificationColumns = `id, recipient_id, message, event_id, worker_id, label, kind, is_read, confirmed, escalated, created_at`

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	var kind string
	if err := row.Scan(&n.ID, &n.RecipientID, &n.Message, &n.EventID, &n.WorkerID, &n.Label,
		&kind, &n.IsRead, &n.Confirmed, &n.Escalated, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Kind = model.NotificationKind(kind)
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

// InsertNotification adds a notification to a recipient's inbox
func (s *txStore) InsertNotification(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES (@id, @recipient, @message, @event, @worker, @label, @kind, @read, @confirmed, @escalated, @created)
	`
	_, err := s.tx.Exec(ctx, query, pgx.NamedArgs{
		"id":        n.ID,
		"recipient": n.RecipientID,
		"message":   n.Message,
		"event":     n.EventID,
		"worker":    n.WorkerID,
		"label":     n.Label,
		"kind":      string(n.Kind),
		"read":      n.IsRead,
		"confirmed": n.Confirmed,
		"escalated": n.Escalated,
		"created":   createdAt(n.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// GetNotificationForUpdate reads a notification and locks the row
func (s *txStore) GetNotificationForUpdate(ctx context.Context, id string) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 FOR UPDATE`
	n, err := scanNotification(s.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// UpdateNotification writes back the read, confirmed and escalated flags
func (s *txStore) UpdateNotification(ctx context.Context, n *model.Notification) error {
	query := `UPDATE notifications SET is_read = $2, confirmed = $3, escalated = $4 WHERE id = $1`
	tag, err := s.tx.Exec(ctx, query, n.ID, n.IsRead, n.Confirmed, n.Escalated)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotificationNotFound
	}
	return nil
}

// FindUnconfirmed returns the outstanding reminder for (event, worker, label)
func (s *txStore) FindUnconfirmed(ctx context.Context, eventID, workerID, label string) (*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE event_id = $1 AND worker_id = $2 AND label = $3
		  AND kind = 'reminder' AND NOT confirmed AND NOT escalated
		ORDER BY created_at, id
		LIMIT 1
		FOR UPDATE
	`
	n, err := scanNotification(s.tx.QueryRow(ctx, query, eventID, workerID, label))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find unconfirmed reminder: %w", err)
	}
	return n, nil
}

// ListNotifications returns a recipient's inbox, oldest first
func (s *txStore) ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1 ORDER BY created_at, id`
	rows, err := s.tx.Query(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationsRead flags the given notifications as read. IDs belonging
// to another recipient or already read are ignored.
func (s *txStore) MarkNotificationsRead(ctx context.Context, ids []string, recipientID string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE notifications SET is_read = TRUE
		WHERE id = ANY($1) AND recipient_id = $2 AND NOT is_read
	`
	tag, err := s.tx.Exec(ctx, query, ids, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
