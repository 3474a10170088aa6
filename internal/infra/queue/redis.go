package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"order-insights/internal/domain"
)

// RedisProfileQueue реализует очередь задач пересчёта на базе Redis lists.
type RedisProfileQueue struct {
	client *redis.Client
	key    string
}

var _ domain.ProfileQueue = (*RedisProfileQueue)(nil)

// NewRedisProfileQueue создаёт очередь по указанному ключу.
func NewRedisProfileQueue(client *redis.Client, key string) *RedisProfileQueue {
	return &RedisProfileQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisProfileQueue) Enqueue(ctx context.Context, job domain.ProfileJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Pop блокирующе читает задачу из очереди.
func (q *RedisProfileQueue) Pop(ctx context.Context) (domain.ProfileJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.ProfileJob{}, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.ProfileJob{}, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.ProfileJob{}, err
		}
		if len(res) != 2 {
			return domain.ProfileJob{}, errors.New("redis queue: unexpected response")
		}
		var job domain.ProfileJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.ProfileJob{}, fmt.Errorf("decode job: %w", err)
		}
		return job, nil
	}
}
