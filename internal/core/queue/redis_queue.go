package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/inkwellhq/papyrus/internal/core"
)

const defaultQueueKey = "papyrus:ingest"

// RedisQueue is a job queue backed by a Redis list, for deployments where
// the API and the ingestion workers run as separate processes. Jobs are
// JSON-encoded, pushed with RPUSH and delivered with BLPOP so consumers
// block instead of polling.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(addr, password, key string) (*RedisQueue, error) {
	if key == "" {
		key = defaultQueueKey
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisQueue{client: client, key: key}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job core.IngestJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (core.IngestJob, error) {
	// Zero timeout blocks until a job arrives or ctx is done.
	res, err := q.client.BLPop(ctx, 0, q.key).Result()
	if err != nil {
		return core.IngestJob{}, err
	}
	var job core.IngestJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return core.IngestJob{}, fmt.Errorf("decode job: %w", err)
	}
	return job, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
