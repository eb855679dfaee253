/*
Copyright 2025 Surgecart Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/stretchr/testify/assert"
	"github.com/surgecart/surge/internal/apierror"
	"github.com/surgecart/surge/model"
)

func outboxRows(msg *model.OutboxMessage) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"message_id", "business_key", "exchange", "routing_key", "payload",
		"status", "retry_count", "max_retry", "next_retry_at", "version", "created_at", "updated_at",
	})
	var nextRetryAt interface{}
	if msg.NextRetryAt != nil {
		nextRetryAt = *msg.NextRetryAt
	}
	rows.AddRow(msg.MessageID, msg.BusinessKey, msg.Exchange, msg.RoutingKey, msg.Payload,
		msg.Status, msg.RetryCount, msg.MaxRetry, nextRetryAt, msg.Version, msg.CreatedAt, msg.UpdatedAt)
	return rows
}

func TestGetDueOutboxMessages(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	msg := model.NewOutboxMessage("ord_1", "seckill.order", "order.created", []byte(`{"order_no":"no_1"}`))
	mock.ExpectQuery("SELECT message_id, business_key, exchange, routing_key, payload, status, retry_count, max_retry, next_retry_at, version, created_at, updated_at FROM surge.outbox_messages").
		WithArgs(50).
		WillReturnRows(outboxRows(msg))

	messages, err := ds.GetDueOutboxMessages(context.Background(), 50)
	assert.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Equal(t, msg.MessageID, messages[0].MessageID)
	assert.Equal(t, model.StatusPending, messages[0].Status)
	assert.Nil(t, messages[0].NextRetryAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOutboxSent_Applied(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE surge.outbox_messages").
		WithArgs("msg_1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := ds.MarkOutboxSent(context.Background(), "msg_1", 1)
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOutboxSent_StaleVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	// A concurrent scanner already bumped the version: zero rows match, the
	// write is rejected, and that is not an error.
	mock.ExpectExec("UPDATE surge.outbox_messages").
		WithArgs("msg_1", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := ds.MarkOutboxSent(context.Background(), "msg_1", 1)
	assert.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleOutboxRetry(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	nextRetryAt := time.Now().Add(30 * time.Second)
	mock.ExpectExec("UPDATE surge.outbox_messages").
		WithArgs("msg_1", int64(1), 1, nextRetryAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := ds.RescheduleOutboxRetry(context.Background(), "msg_1", 1, 1, nextRetryAt)
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOutboxFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE surge.outbox_messages").
		WithArgs("msg_1", int64(3), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := ds.MarkOutboxFailed(context.Background(), "msg_1", 3, 3)
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOutboxMessage_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT message_id, business_key, exchange, routing_key, payload, status, retry_count, max_retry, next_retry_at, version, created_at, updated_at FROM surge.outbox_messages").
		WithArgs("msg_missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"message_id", "business_key", "exchange", "routing_key", "payload",
			"status", "retry_count", "max_retry", "next_retry_at", "version", "created_at", "updated_at",
		}))

	_, err = ds.GetOutboxMessage(context.Background(), "msg_missing")
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
