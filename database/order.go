package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/surgecart/surge/internal/apierror"
	"github.com/surgecart/surge/model"
)

// CreateOrderWithOutbox persists the order row and its outbox message in one
// transaction. Either both commit or neither does; that is the whole point of
// the outbox pattern.
func (d Datasource) CreateOrderWithOutbox(ctx context.Context, ord *model.Order, msg *model.OutboxMessage) error {
	metaDataJSON, err := json.Marshal(ord.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logrus.Error(err)
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO surge.orders (order_id, order_no, user_id, product_id, quantity, amount, status, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ord.OrderID, ord.OrderNo, ord.UserID, ord.ProductID, ord.Quantity, ord.Amount.String(), ord.Status, metaDataJSON)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "Order with this number already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create order", err)
	}

	if err := d.CreateOutboxMessageTx(ctx, tx, msg); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit order transaction", err)
	}
	return nil
}

func (d Datasource) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	ord := model.Order{}
	var metaDataJSON []byte
	var amount string

	row := d.Conn.QueryRowContext(ctx, `
		SELECT order_id, order_no, user_id, product_id, quantity, amount, status, meta_data, created_at
		FROM surge.orders
		WHERE order_id = $1
	`, orderID)

	err := row.Scan(&ord.OrderID, &ord.OrderNo, &ord.UserID, &ord.ProductID, &ord.Quantity, &amount, &ord.Status, &metaDataJSON, &ord.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Order not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve order", err)
	}

	ord.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to parse order amount", err)
	}

	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &ord.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}
	return &ord, nil
}

// ConfirmOrder moves an order from CREATED to CONFIRMED. Confirming an order
// that is already confirmed (a redelivered message) is a no-op.
func (d Datasource) ConfirmOrder(ctx context.Context, orderNo string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE surge.orders
		SET status = 'CONFIRMED'
		WHERE order_no = $1 AND status = 'CREATED'
	`, orderNo)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to confirm order", err)
	}
	return nil
}
