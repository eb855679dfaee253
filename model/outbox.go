package model

import (
	"time"
)

const (
	// StatusPending marks a message that still has delivery attempts ahead of it.
	StatusPending = "PENDING"
	// StatusSent is terminal. A sent message is never mutated again.
	StatusSent = "SENT"
	// StatusFailed is terminal and means the retry budget was exhausted.
	// Remediation is an operational concern, not the scanner's.
	StatusFailed = "FAILED"
)

// DefaultMaxRetry is the delivery attempt ceiling applied to new outbox
// messages unless the caller overrides it.
const DefaultMaxRetry = 3

// OutboxMessage is one durable delivery obligation. It is created in the same
// database transaction as the business row that caused it, and from then on
// is owned exclusively by the delivery scanner.
type OutboxMessage struct {
	MessageID   string     `json:"message_id"`
	BusinessKey string     `json:"business_key"`
	Exchange    string     `json:"exchange"`
	RoutingKey  string     `json:"routing_key"`
	Payload     []byte     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxRetry    int        `json:"max_retry"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Due reports whether the message qualifies for a delivery attempt at the
// given instant.
func (m *OutboxMessage) Due(now time.Time) bool {
	if m.Status != StatusPending || m.RetryCount >= m.MaxRetry {
		return false
	}
	return m.NextRetryAt == nil || !m.NextRetryAt.After(now)
}

// NewOutboxMessage builds a pending message for the given destination. The
// message id is assigned here so the enqueueing transaction and the eventual
// queue payload share one identifier.
func NewOutboxMessage(businessKey, exchange, routingKey string, payload []byte) *OutboxMessage {
	now := time.Now()
	return &OutboxMessage{
		MessageID:   GenerateUUIDWithSuffix("msg"),
		BusinessKey: businessKey,
		Exchange:    exchange,
		RoutingKey:  routingKey,
		Payload:     payload,
		Status:      StatusPending,
		RetryCount:  0,
		MaxRetry:    DefaultMaxRetry,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
