package events

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"taskflow/domain"
)

func TestListenSkipsOwnEvents(t *testing.T) {
	m := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer rc.Close()
	logger, hook := test.NewNullLogger()

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan domain.Event, 4)
	done := make(chan struct{})
	go func() {
		Listen(ctx, logger, rc, "task-events", func(ev domain.Event) { got <- ev })
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for m.PubSubNumSub("task-events")["task-events"] == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("listener never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	own, err := NewEvent(domain.TaskCreated, "mine", "u1", nil)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	foreign := own
	foreign.EntityID = "theirs"
	foreign.Source = "other-process"

	pub := NewRedisPublisher(rc, "task-events")
	for _, ev := range []domain.Event{own, foreign} {
		if err := pub.Publish(ctx, ev); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	payload, _ := sonic.Marshal(map[string]string{"EntityType": "user-settings", "Source": "other-process"})
	m.Publish("task-events", string(payload))
	m.Publish("task-events", "{broken")

	select {
	case ev := <-got:
		if ev.EntityID != "theirs" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("foreign event not delivered")
	}

	deadline = time.Now().Add(time.Second)
	for len(hook.AllEntries()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("bad payload not logged")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not exit")
	}
	if len(got) != 0 {
		t.Fatalf("unexpected extra events: %d", len(got))
	}
}
