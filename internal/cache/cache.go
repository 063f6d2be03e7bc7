// Package cache keeps the full task list in Redis between mutations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yukikurage/task-tracker/internal/constants"
	"github.com/yukikurage/task-tracker/internal/models"
)

// TaskListCache stores the result of listing every task.
type TaskListCache interface {
	// GetTasks returns the cached list and whether it was present.
	GetTasks(ctx context.Context) ([]models.Task, bool, error)
	SetTasks(ctx context.Context, tasks []models.Task) error
	Invalidate(ctx context.Context) error
}

// RedisTaskListCache is a TaskListCache backed by Redis.
type RedisTaskListCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisTaskListCache creates a cache storing the list under prefix+"tasks:all".
func NewRedisTaskListCache(client *redis.Client, prefix string, ttl time.Duration) *RedisTaskListCache {
	return &RedisTaskListCache{
		client: client,
		key:    prefix + constants.TaskListCacheKey,
		ttl:    ttl,
	}
}

func (c *RedisTaskListCache) GetTasks(ctx context.Context) ([]models.Task, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return tasks, true, nil
}

func (c *RedisTaskListCache) SetTasks(ctx context.Context, tasks []models.Task) error {
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *RedisTaskListCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *RedisTaskListCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NopTaskListCache never stores anything. Used when caching is disabled.
type NopTaskListCache struct{}

func (NopTaskListCache) GetTasks(context.Context) ([]models.Task, bool, error) {
	return nil, false, nil
}

func (NopTaskListCache) SetTasks(context.Context, []models.Task) error {
	return nil
}

func (NopTaskListCache) Invalidate(context.Context) error {
	return nil
}
