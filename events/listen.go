package events

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

const reconnectDelay = time.Second

// Listen delivers task events published on channel by other processes until
// ctx is done. Events from this process are skipped. A dropped subscription
// is re-established after a short delay.
func Listen(ctx context.Context, logger *log.Logger, rc *redis.Client, channel string, handle func(domain.Event)) {
	for {
		sub := rc.Subscribe(ctx, channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev domain.Event
				if err := sonic.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Errorf("unable to parse task event: %v", err)
					continue
				}
				if ev.Source == Source || ev.EntityType != domain.EntityTask {
					continue
				}
				handle(ev)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		logger.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}
