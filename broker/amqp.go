package broker

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AMQPPublisher publishes to a RabbitMQ topic exchange. The connection is
// dialed with exponential backoff and re-established lazily after broker
// restarts; a publish against a dead connection returns an error and the
// outbox scanner retries the message on its own schedule.
type AMQPPublisher struct {
	url string

	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
}

func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, declared: make(map[string]bool)}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	operation := func() error {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			logrus.Warnf("amqp dial failed, retrying: %v", err)
			return err
		}
		channel, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return err
		}
		p.conn = conn
		p.channel = channel
		p.declared = make(map[string]bool)
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(operation, policy); err != nil {
		return errors.Wrap(err, "connecting to amqp broker")
	}
	return nil
}

func (p *AMQPPublisher) ensureChannel() (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		if err := p.connect(); err != nil {
			return nil, err
		}
	}
	return p.channel, nil
}

func (p *AMQPPublisher) ensureExchange(exchange string) error {
	if p.declared[exchange] {
		return nil
	}
	err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
	if err != nil {
		return errors.Wrapf(err, "declaring exchange %s", exchange)
	}
	p.declared[exchange] = true
	return nil
}

// Publish sends one persistent message to (exchange, routingKey). Publishing
// is serialized on a single channel; the scanner's batch sizes keep this from
// being a bottleneck long before the broker does.
func (p *AMQPPublisher) Publish(ctx context.Context, exchange, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	channel, err := p.ensureChannel()
	if err != nil {
		return err
	}
	if err := p.ensureExchange(exchange); err != nil {
		return err
	}

	err = channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
	if err != nil {
		// Force a fresh dial on the next attempt.
		p.conn = nil
		return errors.Wrapf(err, "publishing to %s/%s", exchange, routingKey)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
