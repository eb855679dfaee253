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
	"net/http"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/surgecart/surge/config"
	"github.com/surgecart/surge/internal/apierror"
	"github.com/surgecart/surge/internal/request"
)

// ProcessOrderCreated handles one order-created delivery from the queue.
// Deliveries arrive at-least-once, so the handler is idempotent end to end:
// check the ledger, do the work, record the message. The uniqueness
// constraint behind RecordProcessed is the real arbiter when two replicas
// race the same message; a duplicate-record conflict there means the other
// replica finished first and this delivery is a successful no-op.
//
// A non-nil return hands the message back to the broker for redelivery.
func (s *Surge) ProcessOrderCreated(ctx context.Context, payload []byte) error {
	var event OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		// Unparseable payloads never become parseable; retrying is noise.
		logrus.Errorf("dropping malformed order-created payload: %v", err)
		return nil
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("message.id", event.MessageID))

	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	processed, err := s.datasource.AlreadyProcessed(ctx, event.MessageID)
	if err != nil {
		return err
	}
	if processed {
		logrus.Infof("message %s already processed, skipping", event.MessageID)
		return nil
	}

	if err := s.datasource.ConfirmOrder(ctx, event.OrderNo); err != nil {
		return err
	}

	if err := s.deliverOrderWebhook(&event); err != nil {
		// The order is confirmed but the customer was not told; redelivery
		// rolls through the idempotent confirm and retries the webhook.
		return err
	}

	_, err = s.datasource.RecordProcessed(ctx, event.MessageID, conf.Queue.ConsumerName)
	if err != nil {
		if apierror.IsCode(err, apierror.ErrConflict) {
			logrus.Infof("message %s recorded by another consumer, skipping", event.MessageID)
			return nil
		}
		return err
	}

	logrus.Infof("order %s confirmed from message %s", event.OrderNo, event.MessageID)
	return nil
}

// deliverOrderWebhook notifies the configured customer endpoint that the
// order went through. No endpoint configured means nothing to deliver.
func (s *Surge) deliverOrderWebhook(event *OrderCreatedEvent) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := request.ToJsonReq(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", conf.Notification.Webhook.Url, payload)
	if err != nil {
		return err
	}
	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	resp, err := request.Call(req, &response)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("order webhook for %s returned status %d", event.OrderNo, resp.StatusCode)
	}
	return nil
}
