package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskflow/domain"
)

// Cache wraps a Repository with Redis-backed caching for list and stats reads.
// Any mutation evicts every cached read in the namespace.
type Cache struct {
	base      Repository
	redis     *redis.Client
	ttl       time.Duration
	namespace string
}

// NewCache creates a caching Repository wrapper using the provided Redis
// client and TTL. namespace separates dashboards sharing one Redis.
func NewCache(base Repository, client *redis.Client, ttl time.Duration, namespace string) *Cache {
	if base == nil {
		panic("storage.NewCache: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl, namespace: namespace}
}

func (c *Cache) ListTasks(ctx context.Context, f domain.Filters) (domain.Page, error) {
	key := c.tasksKey(f)
	var page domain.Page
	if c.load(ctx, key, &page) {
		return page, nil
	}
	page, err := c.base.ListTasks(ctx, f)
	if err != nil {
		return page, err
	}
	c.store(ctx, key, page)
	return page, nil
}

func (c *Cache) Stats(ctx context.Context) (domain.Stats, error) {
	key := c.statsKey()
	var stats domain.Stats
	if c.load(ctx, key, &stats) {
		return stats, nil
	}
	stats, err := c.base.Stats(ctx)
	if err != nil {
		return stats, err
	}
	c.store(ctx, key, stats)
	return stats, nil
}

func (c *Cache) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) Subtasks(ctx context.Context, id string) ([]domain.Task, error) {
	return c.base.Subtasks(ctx, id)
}

func (c *Cache) CreateTask(ctx context.Context, d domain.Draft) (domain.Task, error) {
	task, err := c.base.CreateTask(ctx, d)
	if err != nil {
		return task, err
	}
	c.evict(ctx)
	return task, nil
}

func (c *Cache) UpdateTask(ctx context.Context, id string, u domain.Update) (domain.Task, error) {
	task, err := c.base.UpdateTask(ctx, id, u)
	if err != nil {
		return task, err
	}
	c.evict(ctx)
	return task, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx)
	return nil
}

func (c *Cache) load(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the API without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, value any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(value)
	if err != nil {
		return
	}
	_, _ = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, c.ttl)
		pipe.SAdd(ctx, c.indexKey(), key)
		pipe.Expire(ctx, c.indexKey(), c.ttl)
		return nil
	})
}

func (c *Cache) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	keys, err := c.redis.SMembers(ctx, c.indexKey()).Result()
	if err != nil {
		return
	}
	keys = append(keys, c.indexKey(), c.statsKey())
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func (c *Cache) tasksKey(f domain.Filters) string {
	return "tasks:" + c.namespace + ":" + f.Values().Encode()
}

func (c *Cache) statsKey() string {
	return "stats:" + c.namespace
}

func (c *Cache) indexKey() string {
	return "keys:" + c.namespace
}
