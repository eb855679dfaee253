package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/surgecart/surge/internal/apierror"
	"github.com/surgecart/surge/model"
)

func TestCreateOrderWithOutbox(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	ord := model.NewOrder(gofakeit.UUID(), gofakeit.UUID(), 2, decimal.NewFromFloat(99.98))
	msg := model.NewOutboxMessage(ord.OrderNo, "seckill.order", "order.created", []byte(`{}`))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO surge.orders").
		WithArgs(ord.OrderID, ord.OrderNo, ord.UserID, ord.ProductID, ord.Quantity, ord.Amount.String(), ord.Status, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO surge.outbox_messages").
		WithArgs(msg.MessageID, msg.BusinessKey, msg.Exchange, msg.RoutingKey, msg.Payload, msg.Status, msg.RetryCount, msg.MaxRetry, msg.Version).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = ds.CreateOrderWithOutbox(context.Background(), ord, msg)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderWithOutbox_OutboxConflictRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	ord := model.NewOrder(gofakeit.UUID(), gofakeit.UUID(), 1, decimal.NewFromFloat(49.99))
	msg := model.NewOutboxMessage(ord.OrderNo, "seckill.order", "order.created", []byte(`{}`))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO surge.orders").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO surge.outbox_messages").
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})
	mock.ExpectRollback()

	err = ds.CreateOrderWithOutbox(context.Background(), ord, msg)
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("UPDATE surge.orders").
		WithArgs("no_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, ds.ConfirmOrder(context.Background(), "no_1"))

	// Confirming again matches no CREATED row and stays a no-op.
	mock.ExpectExec("UPDATE surge.orders").
		WithArgs("no_1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, ds.ConfirmOrder(context.Background(), "no_1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
