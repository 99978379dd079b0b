package events

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"taskflow/domain"
)

// Publisher announces confirmed task mutations.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

var lastTimestamp int64

// Source identifies events published by this process.
var Source = uuid.NewString()

// NextTimestamp returns a strictly increasing unix-nano timestamp.
func NextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		last := atomic.LoadInt64(&lastTimestamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastTimestamp, last, now) {
			return now
		}
	}
}

// NewEvent builds a task event, encoding data as the event payload.
func NewEvent(typ, taskID, userID string, data any) (domain.Event, error) {
	ev := domain.Event{
		EntityID:   taskID,
		EntityType: domain.EntityTask,
		Type:       typ,
		UserID:     userID,
		Source:     Source,
		Timestamp:  NextTimestamp(),
	}
	if data != nil {
		raw, err := sonic.Marshal(data)
		if err != nil {
			return domain.Event{}, err
		}
		ev.Data = raw
	}
	return ev, nil
}

// RedisPublisher publishes events on a Redis channel.
type RedisPublisher struct {
	rc      *redis.Client
	channel string
}

func NewRedisPublisher(rc *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rc: rc, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rc.Publish(ctx, p.channel, payload).Err()
}

type enqueuer interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// QueuePublisher appends events to an Azure storage queue.
type QueuePublisher struct {
	queue enqueuer
}

// NewQueuePublisher creates a QueuePublisher for the named queue.
func NewQueuePublisher(connStr, queueName string) (*QueuePublisher, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 30,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &QueuePublisher{queue: q}, nil
}

func (p *QueuePublisher) Publish(ctx context.Context, ev domain.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// Multi fans an event out to every publisher. All publishers are tried;
// failures are joined for the caller to report.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
