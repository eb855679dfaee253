package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/surgecart/surge/internal/apierror"
	"github.com/surgecart/surge/model"
)

// CreateOutboxMessageTx inserts a pending message inside the caller's
// transaction so the message and the business row it announces commit or
// roll back together.
func (d Datasource) CreateOutboxMessageTx(ctx context.Context, tx *sql.Tx, msg *model.OutboxMessage) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO surge.outbox_messages (message_id, business_key, exchange, routing_key, payload, status, retry_count, max_retry, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, msg.MessageID, msg.BusinessKey, msg.Exchange, msg.RoutingKey, msg.Payload, msg.Status, msg.RetryCount, msg.MaxRetry, msg.Version)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "Outbox message with this business key already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create outbox message", err)
	}
	return nil
}

// GetDueOutboxMessages returns pending messages whose retry budget is not
// exhausted and whose next retry time has passed (or was never set). The
// order of the batch carries no delivery guarantee.
func (d Datasource) GetDueOutboxMessages(ctx context.Context, batchSize int) ([]*model.OutboxMessage, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT message_id, business_key, exchange, routing_key, payload, status, retry_count, max_retry, next_retry_at, version, created_at, updated_at
		FROM surge.outbox_messages
		WHERE status = 'PENDING'
		  AND retry_count < max_retry
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		LIMIT $1
	`, batchSize)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve due outbox messages", err)
	}
	defer rows.Close()

	messages := []*model.OutboxMessage{}
	for rows.Next() {
		msg, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over outbox messages", err)
	}
	return messages, nil
}

func (d Datasource) GetOutboxMessage(ctx context.Context, messageID string) (*model.OutboxMessage, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT message_id, business_key, exchange, routing_key, payload, status, retry_count, max_retry, next_retry_at, version, created_at, updated_at
		FROM surge.outbox_messages
		WHERE message_id = $1
	`, messageID)

	return scanOutboxMessage(row)
}

// MarkOutboxSent applies the PENDING -> SENT transition. The version check
// makes a stale scanner's write a no-op instead of a lost update; false means
// another instance already moved the message on.
func (d Datasource) MarkOutboxSent(ctx context.Context, messageID string, version int64) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE surge.outbox_messages
		SET status = 'SENT', version = version + 1, updated_at = NOW()
		WHERE message_id = $1 AND version = $2 AND status = 'PENDING'
	`, messageID, version)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark outbox message sent", err)
	}
	return appliedRows(result)
}

// RescheduleOutboxRetry records a failed delivery attempt and the time the
// message becomes eligible again.
func (d Datasource) RescheduleOutboxRetry(ctx context.Context, messageID string, version int64, retryCount int, nextRetryAt time.Time) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE surge.outbox_messages
		SET retry_count = $3, next_retry_at = $4, version = version + 1, updated_at = NOW()
		WHERE message_id = $1 AND version = $2 AND status = 'PENDING'
	`, messageID, version, retryCount, nextRetryAt)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reschedule outbox message", err)
	}
	return appliedRows(result)
}

// MarkOutboxFailed parks the message in the terminal FAILED state once the
// retry budget is spent. Remediation from here is operational, not the
// scanner's.
func (d Datasource) MarkOutboxFailed(ctx context.Context, messageID string, version int64, retryCount int) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE surge.outbox_messages
		SET status = 'FAILED', retry_count = $3, version = version + 1, updated_at = NOW()
		WHERE message_id = $1 AND version = $2 AND status = 'PENDING'
	`, messageID, version, retryCount)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to mark outbox message failed", err)
	}
	return appliedRows(result)
}

func appliedRows(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOutboxMessage(row rowScanner) (*model.OutboxMessage, error) {
	msg := model.OutboxMessage{}
	var nextRetryAt sql.NullTime
	err := row.Scan(&msg.MessageID, &msg.BusinessKey, &msg.Exchange, &msg.RoutingKey, &msg.Payload,
		&msg.Status, &msg.RetryCount, &msg.MaxRetry, &nextRetryAt, &msg.Version, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Outbox message not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan outbox message", err)
	}
	if nextRetryAt.Valid {
		msg.NextRetryAt = &nextRetryAt.Time
	}
	return &msg, nil
}
