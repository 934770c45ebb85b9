package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/genius-academy-api/internal/models"
)

const notificationColumns = `id, account_id, channel, recipient, subject, template, body, status, attempts, next_attempt_at, last_error, created_at, delivered_at`

// NotificationRepository is the notification outbox.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Enqueue writes a PENDING row. Called inside the transaction that produced the message.
func (r *NotificationRepository) Enqueue(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.NextAttemptAt.IsZero() {
		n.NextAttemptAt = now
	}
	n.Status = models.NotificationPending
	const query = `INSERT INTO notifications (id, account_id, channel, recipient, subject, template, body, status, attempts, next_attempt_at, created_at)
VALUES (:id, :account_id, :channel, :recipient, :subject, :template, :body, :status, :attempts, :next_attempt_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, n); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// ClaimDue locks up to limit due PENDING rows, pushes their next attempt past lease so
// no other relay picks them up meanwhile, and returns them.
func (r *NotificationRepository) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) (claimed []models.Notification, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `SELECT ` + notificationColumns + ` FROM notifications
WHERE status = $1 AND next_attempt_at <= $2
ORDER BY next_attempt_at LIMIT $3 FOR UPDATE SKIP LOCKED`
	if err = tx.SelectContext(ctx, &claimed, query, models.NotificationPending, now, limit); err != nil {
		return nil, fmt.Errorf("select due notifications: %w", err)
	}
	if len(claimed) == 0 {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit claim: %w", err)
		}
		return nil, nil
	}

	ids := make([]string, len(claimed))
	for i := range claimed {
		ids[i] = claimed[i].ID
	}
	leaseUntil := now.Add(lease)
	if _, err = tx.ExecContext(ctx, `UPDATE notifications SET next_attempt_at = $2 WHERE id = ANY($1)`, pq.Array(ids), leaseUntil); err != nil {
		return nil, fmt.Errorf("lease notifications: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	for i := range claimed {
		claimed[i].NextAttemptAt = leaseUntil
	}
	return claimed, nil
}

// MarkDelivered records a successful send and clears the body.
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notifications SET status = $2, delivered_at = $3, body = NULL, last_error = NULL, attempts = attempts + 1 WHERE id = $1 AND status = $4`
	if _, err := r.db.ExecContext(ctx, query, id, models.NotificationDelivered, at, models.NotificationPending); err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return nil
}

// MarkRetry records a failed attempt and schedules the next one.
func (r *NotificationRepository) MarkRetry(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error {
	const query = `UPDATE notifications SET attempts = $2, next_attempt_at = $3, last_error = $4 WHERE id = $1 AND status = $5`
	if _, err := r.db.ExecContext(ctx, query, id, attempts, next, lastErr, models.NotificationPending); err != nil {
		return fmt.Errorf("mark notification retry: %w", err)
	}
	return nil
}

// MarkFailed gives up on a notification and clears the body.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string) error {
	const query = `UPDATE notifications SET status = $2, attempts = $3, last_error = $4, body = NULL WHERE id = $1 AND status = $5`
	if _, err := r.db.ExecContext(ctx, query, id, models.NotificationFailed, attempts, lastErr, models.NotificationPending); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

// CountByStatus returns outbox row counts per status.
func (r *NotificationRepository) CountByStatus(ctx context.Context) (map[models.NotificationStatus]int, error) {
	var rows []struct {
		Status models.NotificationStatus `db:"status"`
		Count  int                       `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM notifications GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	counts := make(map[models.NotificationStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
