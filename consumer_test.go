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
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/surgecart/surge/config"
	"github.com/surgecart/surge/internal/apierror"
	"github.com/surgecart/surge/model"
)

func mockConsumerConfig(webhookURL string) {
	cnf := &config.Configuration{
		Queue: config.QueueConfig{ConsumerName: "surge-order-consumer"},
	}
	cnf.Notification.Webhook.Url = webhookURL
	config.MockConfig(cnf)
}

func orderCreatedPayload(t *testing.T) ([]byte, OrderCreatedEvent) {
	event := OrderCreatedEvent{
		MessageID: "msg_1",
		OrderID:   "ord_1",
		OrderNo:   "no_1",
		UserID:    "usr_1",
		ProductID: "prd_1",
		Quantity:  1,
		Amount:    "49.99",
	}
	payload, err := json.Marshal(event)
	assert.NoError(t, err)
	return payload, event
}

func TestProcessOrderCreated_ConfirmsAndRecords(t *testing.T) {
	mockConsumerConfig("")
	payload, event := orderCreatedPayload(t)

	confirmed := []string{}
	recorded := []string{}
	ds := &mockDataSource{
		confirmOrder: func(_ context.Context, orderNo string) error {
			confirmed = append(confirmed, orderNo)
			return nil
		},
		recordProcessed: func(_ context.Context, messageID, consumerName string) (*model.ConsumptionRecord, error) {
			recorded = append(recorded, messageID)
			assert.Equal(t, "surge-order-consumer", consumerName)
			return &model.ConsumptionRecord{MessageID: messageID, ConsumerName: consumerName}, nil
		},
	}
	s := &Surge{datasource: ds}

	err := s.ProcessOrderCreated(context.Background(), payload)
	assert.NoError(t, err)
	assert.Equal(t, []string{event.OrderNo}, confirmed)
	assert.Equal(t, []string{event.MessageID}, recorded)
}

func TestProcessOrderCreated_SkipsAlreadyProcessed(t *testing.T) {
	mockConsumerConfig("")
	payload, _ := orderCreatedPayload(t)

	ds := &mockDataSource{
		alreadyProcessed: func(_ context.Context, _ string) (bool, error) {
			return true, nil
		},
		confirmOrder: func(_ context.Context, _ string) error {
			t.Fatal("a processed message must not be confirmed again")
			return nil
		},
	}
	s := &Surge{datasource: ds}

	assert.NoError(t, s.ProcessOrderCreated(context.Background(), payload))
}

func TestProcessOrderCreated_DuplicateRecordIsSuccess(t *testing.T) {
	mockConsumerConfig("")
	payload, _ := orderCreatedPayload(t)

	ds := &mockDataSource{
		recordProcessed: func(_ context.Context, _, _ string) (*model.ConsumptionRecord, error) {
			// Another replica got there first.
			return nil, apierror.NewAPIError(apierror.ErrConflict, "Message already recorded as processed", nil)
		},
	}
	s := &Surge{datasource: ds}

	assert.NoError(t, s.ProcessOrderCreated(context.Background(), payload))
}

func TestProcessOrderCreated_MalformedPayloadIsDropped(t *testing.T) {
	mockConsumerConfig("")

	ds := &mockDataSource{
		alreadyProcessed: func(_ context.Context, _ string) (bool, error) {
			t.Fatal("malformed payloads must not reach the ledger")
			return false, nil
		},
	}
	s := &Surge{datasource: ds}

	assert.NoError(t, s.ProcessOrderCreated(context.Background(), []byte("not json")))
}

func TestProcessOrderCreated_DeliversWebhook(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	mockConsumerConfig("https://customer.example.com/hooks/orders")
	httpmock.RegisterResponder("POST", "https://customer.example.com/hooks/orders",
		httpmock.NewStringResponder(200, `{"ok": true}`))

	payload, _ := orderCreatedPayload(t)
	s := &Surge{datasource: &mockDataSource{}}

	assert.NoError(t, s.ProcessOrderCreated(context.Background(), payload))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProcessOrderCreated_WebhookFailureTriggersRedelivery(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	mockConsumerConfig("https://customer.example.com/hooks/orders")
	httpmock.RegisterResponder("POST", "https://customer.example.com/hooks/orders",
		httpmock.NewStringResponder(500, `{"ok": false}`))

	payload, _ := orderCreatedPayload(t)
	recordCalls := 0
	ds := &mockDataSource{
		recordProcessed: func(_ context.Context, _, _ string) (*model.ConsumptionRecord, error) {
			recordCalls++
			return nil, nil
		},
	}
	s := &Surge{datasource: ds}

	err := s.ProcessOrderCreated(context.Background(), payload)
	assert.Error(t, err)
	// The ledger entry must wait until the customer was actually notified.
	assert.Equal(t, 0, recordCalls)
}
