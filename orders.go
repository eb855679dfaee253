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

package surge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/surgecart/surge/config"
	"github.com/surgecart/surge/internal/apierror"
	"github.com/surgecart/surge/limiter"
	"github.com/surgecart/surge/model"
)

// StockSnapshot is the cached view of a product on sale: how many units are
// still believed available and the unit price. It is a fast pre-check, not
// the inventory authority; the authoritative decrement happens downstream.
type StockSnapshot struct {
	ProductID string          `json:"product_id"`
	Available int             `json:"available"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderCreatedEvent is the payload published for every placed order. The
// message id doubles as the consumer-side idempotency key.
type OrderCreatedEvent struct {
	MessageID string    `json:"message_id"`
	OrderID   string    `json:"order_id"`
	OrderNo   string    `json:"order_no"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

const stockSnapshotTTL = 10 * time.Minute

func stockCacheKey(productID string) string {
	return fmt.Sprintf("stock:%s", productID)
}

// PutStockSnapshot seeds or refreshes the cached sale catalog entry for a
// product.
func (s *Surge) PutStockSnapshot(ctx context.Context, snapshot *StockSnapshot) error {
	return s.cache.Set(ctx, stockCacheKey(snapshot.ProductID), snapshot, stockSnapshotTTL)
}

// PlaceSeckillOrder is the flash-sale order intake. It spends a token from
// the caller's seckill bucket, checks the cached stock snapshot, then commits
// the order row together with its outbox message in one transaction. No
// publish happens here; the delivery scanner picks the message up.
func (s *Surge) PlaceSeckillOrder(ctx context.Context, userID, productID string, quantity int) (*model.Order, error) {
	tracer := otel.Tracer("surge.orders")
	ctx, span := tracer.Start(ctx, "PlaceSeckillOrder")
	defer span.End()

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "Quantity must be positive", nil)
	}

	rl := conf.RateLimit
	ok, err := s.tryAcquire(ctx, limiter.Key{Scope: limiter.ScopeSeckill, Identifier: userID},
		limiter.Limit{Rate: rl.SeckillPerSecond, Burst: rl.SeckillBurst, IdleTTL: time.Duration(rl.BucketTTLSec) * time.Second}, rl.FailOpen)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrRateLimited, "Too many purchase attempts, slow down", nil)
	}

	var snapshot StockSnapshot
	if err := s.cache.Get(ctx, stockCacheKey(productID), &snapshot); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read stock snapshot", err)
	}
	if snapshot.ProductID == "" {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Product is not in the sale catalog", nil)
	}
	if snapshot.Available < quantity {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Product is sold out", nil)
	}

	ord := model.NewOrder(userID, productID, quantity, snapshot.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))))
	msg := model.NewOutboxMessage(ord.OrderNo, conf.Queue.OrderExchange, conf.Queue.OrderRoutingKey, nil)
	msg.MaxRetry = conf.Outbox.MaxRetry

	event := OrderCreatedEvent{
		MessageID: msg.MessageID,
		OrderID:   ord.OrderID,
		OrderNo:   ord.OrderNo,
		UserID:    ord.UserID,
		ProductID: ord.ProductID,
		Quantity:  ord.Quantity,
		Amount:    ord.Amount.String(),
		CreatedAt: ord.CreatedAt,
	}
	msg.Payload, err = json.Marshal(event)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal order event", err)
	}

	if err := s.datasource.CreateOrderWithOutbox(ctx, ord, msg); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", ord.OrderID))
	return ord, nil
}

// GetOrder retrieves an order by its id.
func (s *Surge) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	return s.datasource.GetOrder(ctx, orderID)
}
