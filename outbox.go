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
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/surgecart/surge/broker"
	"github.com/surgecart/surge/config"
	"github.com/surgecart/surge/internal/notification"
	"github.com/surgecart/surge/model"
)

// outboxStore is the slice of the datasource the scanner mutates. Every
// mutation is version-checked; false means another scanner won the write.
type outboxStore interface {
	GetDueOutboxMessages(ctx context.Context, batchSize int) ([]*model.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, messageID string, version int64) (bool, error)
	RescheduleOutboxRetry(ctx context.Context, messageID string, version int64, retryCount int, nextRetryAt time.Time) (bool, error)
	MarkOutboxFailed(ctx context.Context, messageID string, version int64, retryCount int) (bool, error)
}

// DeliveryScanner drains the outbox in the background. It is the only writer
// of post-creation message state; request handlers never publish directly.
// Multiple scanner instances may run against the same table: the version
// checks turn duplicate work into no-ops (and, at worst, duplicate publishes,
// which consumers already absorb through the consumption ledger).
type DeliveryScanner struct {
	store          outboxStore
	publisher      broker.Publisher
	scanInterval   time.Duration
	retryDelay     time.Duration
	publishTimeout time.Duration
	batchSize      int
}

// NewDeliveryScanner builds a scanner from the outbox configuration.
func NewDeliveryScanner(store outboxStore, publisher broker.Publisher, conf *config.Configuration) *DeliveryScanner {
	return &DeliveryScanner{
		store:          store,
		publisher:      publisher,
		scanInterval:   time.Duration(conf.Outbox.ScanIntervalSec) * time.Second,
		retryDelay:     time.Duration(conf.Outbox.RetryDelaySec) * time.Second,
		publishTimeout: time.Duration(conf.Outbox.PublishTimeoutSec) * time.Second,
		batchSize:      conf.Outbox.BatchSize,
	}
}

// Start runs scan cycles on a fixed ticker until the context is cancelled.
// The cadence is fixed: a busy cycle does not shorten the interval and an
// idle one does not lengthen it.
func (s *DeliveryScanner) Start(ctx context.Context) {
	logrus.Infof("delivery scanner started, interval %s", s.scanInterval)
	ticker := time.NewTicker(s.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("delivery scanner stopped")
			return
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil {
				notification.NotifyError(err)
			}
		}
	}
}

// ScanOnce fetches one batch of due messages and attempts delivery for each.
// A message whose delivery or bookkeeping fails never stops the rest of the
// batch.
func (s *DeliveryScanner) ScanOnce(ctx context.Context) error {
	tracer := otel.Tracer("surge.outbox")
	ctx, span := tracer.Start(ctx, "ScanOutbox")
	defer span.End()

	messages, err := s.store.GetDueOutboxMessages(ctx, s.batchSize)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("outbox.batch_size", len(messages)))

	for _, msg := range messages {
		s.deliver(ctx, msg)
	}
	return nil
}

// deliver makes one publish attempt and persists the outcome. Success moves
// the message to SENT. Failure increments the retry count: below the budget
// the message is rescheduled for now+retryDelay, at the budget it is parked
// as FAILED and an operational alert goes out. Stale versions make every
// write a silent no-op for this cycle.
func (s *DeliveryScanner) deliver(ctx context.Context, msg *model.OutboxMessage) {
	pubCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	err := s.publisher.Publish(pubCtx, msg.Exchange, msg.RoutingKey, msg.Payload)
	cancel()

	if err == nil {
		applied, markErr := s.store.MarkOutboxSent(ctx, msg.MessageID, msg.Version)
		if markErr != nil {
			logrus.Errorf("outbox message %s published but not marked sent: %v", msg.MessageID, markErr)
			return
		}
		if !applied {
			logrus.Infof("outbox message %s already handled by another scanner", msg.MessageID)
		}
		return
	}

	logrus.Warnf("publish attempt %d for outbox message %s failed: %v", msg.RetryCount+1, msg.MessageID, err)

	retryCount := msg.RetryCount + 1
	if retryCount >= msg.MaxRetry {
		applied, markErr := s.store.MarkOutboxFailed(ctx, msg.MessageID, msg.Version, retryCount)
		if markErr != nil {
			logrus.Errorf("failed to park outbox message %s: %v", msg.MessageID, markErr)
			return
		}
		if applied {
			notification.NotifyError(fmt.Errorf("outbox message %s exhausted its %d delivery attempts and was marked FAILED: %v", msg.MessageID, msg.MaxRetry, err))
		}
		return
	}

	if _, markErr := s.store.RescheduleOutboxRetry(ctx, msg.MessageID, msg.Version, retryCount, time.Now().Add(s.retryDelay)); markErr != nil {
		logrus.Errorf("failed to reschedule outbox message %s: %v", msg.MessageID, markErr)
	}
}
