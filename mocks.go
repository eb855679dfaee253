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
	"time"

	"github.com/surgecart/surge/model"
)

// mockDataSource is a function-field stand-in for database.IDataSource used
// by the package tests. Unset fields return zero values.
type mockDataSource struct {
	getDueOutboxMessages  func(ctx context.Context, batchSize int) ([]*model.OutboxMessage, error)
	getOutboxMessage      func(ctx context.Context, messageID string) (*model.OutboxMessage, error)
	markOutboxSent        func(ctx context.Context, messageID string, version int64) (bool, error)
	rescheduleOutboxRetry func(ctx context.Context, messageID string, version int64, retryCount int, nextRetryAt time.Time) (bool, error)
	markOutboxFailed      func(ctx context.Context, messageID string, version int64, retryCount int) (bool, error)
	alreadyProcessed      func(ctx context.Context, messageID string) (bool, error)
	recordProcessed       func(ctx context.Context, messageID, consumerName string) (*model.ConsumptionRecord, error)
	createOrderWithOutbox func(ctx context.Context, ord *model.Order, msg *model.OutboxMessage) error
	getOrder              func(ctx context.Context, orderID string) (*model.Order, error)
	confirmOrder          func(ctx context.Context, orderNo string) error
}

func (m *mockDataSource) GetDueOutboxMessages(ctx context.Context, batchSize int) ([]*model.OutboxMessage, error) {
	if m.getDueOutboxMessages != nil {
		return m.getDueOutboxMessages(ctx, batchSize)
	}
	return nil, nil
}

func (m *mockDataSource) GetOutboxMessage(ctx context.Context, messageID string) (*model.OutboxMessage, error) {
	if m.getOutboxMessage != nil {
		return m.getOutboxMessage(ctx, messageID)
	}
	return nil, nil
}

func (m *mockDataSource) MarkOutboxSent(ctx context.Context, messageID string, version int64) (bool, error) {
	if m.markOutboxSent != nil {
		return m.markOutboxSent(ctx, messageID, version)
	}
	return true, nil
}

func (m *mockDataSource) RescheduleOutboxRetry(ctx context.Context, messageID string, version int64, retryCount int, nextRetryAt time.Time) (bool, error) {
	if m.rescheduleOutboxRetry != nil {
		return m.rescheduleOutboxRetry(ctx, messageID, version, retryCount, nextRetryAt)
	}
	return true, nil
}

func (m *mockDataSource) MarkOutboxFailed(ctx context.Context, messageID string, version int64, retryCount int) (bool, error) {
	if m.markOutboxFailed != nil {
		return m.markOutboxFailed(ctx, messageID, version, retryCount)
	}
	return true, nil
}

func (m *mockDataSource) AlreadyProcessed(ctx context.Context, messageID string) (bool, error) {
	if m.alreadyProcessed != nil {
		return m.alreadyProcessed(ctx, messageID)
	}
	return false, nil
}

func (m *mockDataSource) RecordProcessed(ctx context.Context, messageID, consumerName string) (*model.ConsumptionRecord, error) {
	if m.recordProcessed != nil {
		return m.recordProcessed(ctx, messageID, consumerName)
	}
	return &model.ConsumptionRecord{MessageID: messageID, ConsumerName: consumerName, ConsumeTime: time.Now()}, nil
}

func (m *mockDataSource) CreateOrderWithOutbox(ctx context.Context, ord *model.Order, msg *model.OutboxMessage) error {
	if m.createOrderWithOutbox != nil {
		return m.createOrderWithOutbox(ctx, ord, msg)
	}
	return nil
}

func (m *mockDataSource) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	if m.getOrder != nil {
		return m.getOrder(ctx, orderID)
	}
	return nil, nil
}

func (m *mockDataSource) ConfirmOrder(ctx context.Context, orderNo string) error {
	if m.confirmOrder != nil {
		return m.confirmOrder(ctx, orderNo)
	}
	return nil
}
