package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"order-insights/internal/domain"
	"order-insights/internal/infra/metrics"
)

// RabbitProfileQueue реализует очередь задач пересчёта поверх RabbitMQ.
// Очередь объявляется durable, сообщения публикуются persistent.
type RabbitProfileQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	consumeOnce sync.Once
	deliveries  <-chan amqp.Delivery
	consumeErr  error
}

var _ domain.ProfileQueue = (*RabbitProfileQueue)(nil)

// NewRabbitProfileQueue подключается к брокеру и объявляет очередь.
func NewRabbitProfileQueue(url, queue string) (*RabbitProfileQueue, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitProfileQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitProfileQueue) Enqueue(ctx context.Context, job domain.ProfileJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди. Подписка создаётся лениво,
// чтобы публикующие процессы не забирали сообщения.
func (q *RabbitProfileQueue) Pop(ctx context.Context) (domain.ProfileJob, error) {
	q.consumeOnce.Do(func() {
		q.deliveries, q.consumeErr = q.ch.Consume(q.queue, "", false, false, false, false, nil)
	})
	if q.consumeErr != nil {
		return domain.ProfileJob{}, fmt.Errorf("consume queue: %w", q.consumeErr)
	}

	for {
		select {
		case <-ctx.Done():
			return domain.ProfileJob{}, ctx.Err()
		case delivery, ok := <-q.deliveries:
			if !ok {
				return domain.ProfileJob{}, errors.New("rabbitmq: канал доставки закрыт")
			}
			var job domain.ProfileJob
			if err := json.Unmarshal(delivery.Body, &job); err != nil {
				_ = delivery.Nack(false, false)
				return domain.ProfileJob{}, fmt.Errorf("decode job: %w", err)
			}
			if err := delivery.Ack(false); err != nil {
				return domain.ProfileJob{}, fmt.Errorf("ack job: %w", err)
			}
			return job, nil
		}
	}
}

// Close закрывает канал и подключение.
func (q *RabbitProfileQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
