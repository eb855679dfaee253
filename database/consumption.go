package database

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/surgecart/surge/internal/apierror"
	"github.com/surgecart/surge/model"
)

// AlreadyProcessed reports whether a consumption record exists for the
// message id. This is a cheap pre-check only; the INSERT's uniqueness
// constraint is what actually decides races between consumer replicas.
func (d Datasource) AlreadyProcessed(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM surge.consumption_records WHERE message_id = $1)
	`, messageID).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check consumption record", err)
	}
	return exists, nil
}

// RecordProcessed inserts the one-and-only consumption record for a message.
// A duplicate insert surfaces as ErrConflict; callers racing another replica
// must treat that as a successful no-op since the message did get processed.
func (d Datasource) RecordProcessed(ctx context.Context, messageID, consumerName string) (*model.ConsumptionRecord, error) {
	record := model.ConsumptionRecord{
		MessageID:    messageID,
		ConsumerName: consumerName,
		ConsumeTime:  time.Now(),
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO surge.consumption_records (message_id, consumer_name, consume_time)
		VALUES ($1, $2, $3)
	`, record.MessageID, record.ConsumerName, record.ConsumeTime)

	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Message already recorded as processed", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record consumption", err)
	}
	return &record, nil
}
