package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	BalanceChannel = "pointsledger:balances"
	publishTimeout = 500 * time.Millisecond
	outboxSize     = 256
)

type relayMessage struct {
	UserID string        `json:"user_id"`
	Update BalanceUpdate `json:"update"`
}

// Relay fans balance updates out through Redis pub/sub so every instance
// delivers them to its own websocket clients. Publishing happens off the
// caller's goroutine, from an in-process outbox drained by Run.
type Relay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	outbox  chan relayMessage
	logger  *slog.Logger
}

func NewRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		client:  client,
		hub:     hub,
		channel: BalanceChannel,
		outbox:  make(chan relayMessage, outboxSize),
		logger:  logger,
	}
}

// BroadcastBalance queues the update for publishing and never blocks.
// A full outbox delivers to clients on this instance only.
func (r *Relay) BroadcastBalance(userID string, update BalanceUpdate) {
	select {
	case r.outbox <- relayMessage{UserID: userID, Update: update}:
	default:
		r.logger.Warn("balance relay outbox full, delivering locally", "user_id", userID, "account_id", update.AccountID)
		r.hub.BroadcastBalance(userID, update)
	}
}

func (r *Relay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.outbox:
			r.publish(ctx, msg)
		}
	}
}

// publish falls back to local delivery when Redis is unreachable.
func (r *Relay) publish(ctx context.Context, msg relayMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("encode balance update", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("balance relay publish failed, delivering locally",
			"user_id", msg.UserID,
			"account_id", msg.Update.AccountID,
			"error", err,
		)
		r.hub.BroadcastBalance(msg.UserID, msg.Update)
	}
}

// Run drains the outbox and subscribes to the balance channel until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	go r.publishLoop(ctx)
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *Relay) deliver(payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.UserID == "" {
		r.logger.Warn("dropping malformed balance message", "payload", payload)
		return
	}
	r.hub.BroadcastBalance(msg.UserID, msg.Update)
}
