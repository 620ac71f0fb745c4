package notify

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"medicare-backend/internal/shared/telemetry"
)

// DefaultChannel is the pub/sub channel shared by every API instance.
const DefaultChannel = "symptoms:events"

const publishTimeout = 2 * time.Second

type envelope struct {
	UserID string          `json:"userId"`
	Event  json.RawMessage `json:"event"`
}

// RedisBroker relays events through Redis pub/sub so a client connected to any
// instance receives events produced on another one.
type RedisBroker struct {
	client  *redis.Client
	hub     *Hub
	channel string
}

func NewRedisBroker(client *redis.Client, hub *Hub, channel string) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroker{client: client, hub: hub, channel: channel}
}

// Publish sends the event to Redis. When Redis is unavailable the event is
// delivered to local clients only.
func (b *RedisBroker) Publish(userID string, ev Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		telemetry.Error("notify.encode_failed", map[string]any{
			"session_id": ev.SessionID,
			"error":      err.Error(),
		})
		return
	}
	payload, err := json.Marshal(envelope{UserID: userID, Event: frame})
	if err != nil {
		b.hub.deliver(userID, ev.SessionID, frame)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		telemetry.Warn("notify.redis_publish_failed", map[string]any{
			"session_id": ev.SessionID,
			"error":      err.Error(),
		})
		b.hub.deliver(userID, ev.SessionID, frame)
	}
}

// Run subscribes to the channel and forwards messages into the local hub until
// ctx is canceled.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	telemetry.Info("notify.redis_subscribed", map[string]any{"channel": b.channel})
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handleMessage([]byte(msg.Payload))
		}
	}
}

func (b *RedisBroker) handleMessage(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.UserID == "" || len(env.Event) == 0 {
		telemetry.Warn("notify.redis_bad_message", map[string]any{"bytes": len(payload)})
		return
	}
	var head struct {
		SessionID string `json:"sessionId"`
	}
	_ = json.Unmarshal(env.Event, &head)
	b.hub.deliver(env.UserID, head.SessionID, env.Event)
}
