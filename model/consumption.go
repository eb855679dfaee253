package model

import "time"

// ConsumptionRecord marks a message id as processed by a named consumer.
// At most one record per message id ever exists; the database uniqueness
// constraint, not application logic, enforces that because consumer replicas
// race on the same message.
type ConsumptionRecord struct {
	MessageID    string    `json:"message_id"`
	ConsumerName string    `json:"consumer_name"`
	ConsumeTime  time.Time `json:"consume_time"`
}
