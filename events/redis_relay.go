package events

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultRelayChannel = "goldenminutes:events"

// RedisRelay forwards local events to a Redis channel and delivers events
// published by other instances to a local callback.
type RedisRelay struct {
	client     *redis.Client
	channel    string
	instanceID string
}

func NewRedisRelay(client *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
	}
}

// Handle is a bus Handler that publishes the event to Redis.
func (r *RedisRelay) Handle(ctx context.Context, event Event) error {
	if event.Origin == "" {
		event.Origin = r.instanceID
	}
	if event.Origin != r.instanceID {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Listen delivers remote events until ctx is cancelled.
func (r *RedisRelay) Listen(ctx context.Context, deliver func(Event)) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logrus.Warnf("Dropping malformed relayed event: %v", err)
				continue
			}
			if event.Origin == r.instanceID {
				continue
			}
			deliver(event)
		}
	}
}
