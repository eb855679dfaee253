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
	"time"

	"github.com/surgecart/surge/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	outbox      // Interface for outbox message operations
	consumption // Interface for idempotent-consumption ledger operations
	order       // Interface for flash-sale order operations
}

// outbox defines methods for handling outbox messages. All mutations after
// creation are version-checked: the bool result reports whether the write
// was applied or lost to a concurrent scanner.
type outbox interface {
	GetDueOutboxMessages(ctx context.Context, batchSize int) ([]*model.OutboxMessage, error)   // Retrieves pending messages eligible for a delivery attempt
	GetOutboxMessage(ctx context.Context, messageID string) (*model.OutboxMessage, error)      // Retrieves a message by ID
	MarkOutboxSent(ctx context.Context, messageID string, version int64) (bool, error)         // Transitions PENDING -> SENT
	RescheduleOutboxRetry(ctx context.Context, messageID string, version int64, retryCount int, nextRetryAt time.Time) (bool, error) // Records a failed attempt with a future retry
	MarkOutboxFailed(ctx context.Context, messageID string, version int64, retryCount int) (bool, error)                            // Transitions PENDING -> FAILED (terminal)
}

// consumption defines methods for the idempotency ledger.
type consumption interface {
	AlreadyProcessed(ctx context.Context, messageID string) (bool, error)                                          // Checks whether a message id was recorded
	RecordProcessed(ctx context.Context, messageID, consumerName string) (*model.ConsumptionRecord, error)         // Records first-time processing; conflicts on duplicates
}

// order defines methods for flash-sale orders.
type order interface {
	CreateOrderWithOutbox(ctx context.Context, ord *model.Order, msg *model.OutboxMessage) error // Persists the order and its outbox message in one transaction
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)                          // Retrieves an order by ID
	ConfirmOrder(ctx context.Context, orderNo string) error                                      // Marks an order CONFIRMED
}
