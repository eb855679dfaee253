package broker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/surgecart/surge/config"
	redis_db "github.com/surgecart/surge/internal/redis-db"
)

// AsynqPublisher publishes through a Redis-backed asynq queue. The exchange
// becomes the asynq queue and the (exchange, routing key) pair the task type,
// so a worker mux can dispatch on destination.
type AsynqPublisher struct {
	client *asynq.Client
}

func NewAsynqPublisher(conf *config.Configuration) (*AsynqPublisher, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis URL for asynq publisher")
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisOption.Addr,
		Password: redisOption.Password,
		DB:       redisOption.DB,
	})
	return &AsynqPublisher{client: client}, nil
}

// Publish enqueues the payload. Getting the message to the broker is the
// outbox scanner's retry loop; once enqueued, redelivering to a failing
// handler is asynq's. Consumers are idempotent, so redelivery is safe.
func (p *AsynqPublisher) Publish(ctx context.Context, exchange, routingKey string, payload []byte) error {
	task := asynq.NewTask(TaskName(exchange, routingKey), payload,
		asynq.Queue(exchange),
		asynq.MaxRetry(5),
	)
	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		return errors.Wrapf(err, "enqueueing task to %s", exchange)
	}
	return nil
}

func (p *AsynqPublisher) Close() error {
	return p.client.Close()
}
