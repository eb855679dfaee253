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

// Package broker abstracts the durable queue the delivery scanner publishes
// to. Destinations are addressed as (exchange, routing key) regardless of the
// backing transport.
package broker

import (
	"context"
	"fmt"

	"github.com/surgecart/surge/config"
)

// Publisher delivers a payload to a destination on the durable queue. A nil
// error means the broker accepted the message; delivery to consumers is then
// the broker's at-least-once concern. Retry policy is NOT the publisher's
// job — the outbox scanner owns it.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, payload []byte) error
}

// TaskName maps a destination to the task/topic identifier used by brokers
// without native exchange semantics.
func TaskName(exchange, routingKey string) string {
	return fmt.Sprintf("%s:%s", exchange, routingKey)
}

// NewPublisher builds the publisher selected by the queue configuration.
func NewPublisher(conf *config.Configuration) (Publisher, error) {
	switch conf.Queue.Broker {
	case config.BrokerAMQP:
		return NewAMQPPublisher(conf.Queue.AmqpDns)
	default:
		return NewAsynqPublisher(conf)
	}
}
