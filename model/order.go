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

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// OrderStatusCreated is the state an order is born in. The order row and
	// its outbox message commit together.
	OrderStatusCreated = "CREATED"
	// OrderStatusConfirmed is set by the downstream consumer once the
	// order-created message has been processed.
	OrderStatusConfirmed = "CONFIRMED"
)

// Order is the minimal flash-sale order row the pipeline owns. Payment and
// fulfilment live in other services; this row exists so the outbox message
// has a business transaction to commit with.
type Order struct {
	OrderID   string                 `json:"order_id"`
	OrderNo   string                 `json:"order_no"`
	UserID    string                 `json:"user_id"`
	ProductID string                 `json:"product_id"`
	Quantity  int                    `json:"quantity"`
	Amount    decimal.Decimal        `json:"amount"`
	Status    string                 `json:"status"`
	MetaData  map[string]interface{} `json:"meta_data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewOrder builds a CREATED order with generated ids.
func NewOrder(userID, productID string, quantity int, amount decimal.Decimal) *Order {
	return &Order{
		OrderID:   GenerateUUIDWithSuffix("ord"),
		OrderNo:   GenerateUUIDWithSuffix("no"),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		Amount:    amount,
		Status:    OrderStatusCreated,
		CreatedAt: time.Now(),
	}
}
