package mq

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MaintenanceChannel carries maintenance run summaries.
const MaintenanceChannel = "maintenance-events"

// Event is one published message.
type Event struct {
	Kind   string   `json:"kind"`
	RunID  string   `json:"runId"`
	At     string   `json:"at"`
	Log    []string `json:"log,omitempty"`
	Error  string   `json:"error,omitempty"`
	Forced bool     `json:"forced,omitempty"`
}

// Publisher emits events on a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, evt Event) error
}

// Handler consumes a delivered event.
type Handler func(channel string, evt Event)

// Redis publishes over redis pub/sub.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (p *Redis) Publish(ctx context.Context, channel string, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[Emit] Failed to marshal event content: %v", err)
		return err
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("[Emit] Failed to publish event to Redis: %v", err)
		return err
	}
	log.Printf("[Emit] %s event published to channel '%s'", evt.Kind, channel)
	return nil
}

// Subscribe delivers events from channel to h until ctx is done.
func (p *Redis) Subscribe(ctx context.Context, channel string, h Handler) {
	sub := p.client.Subscribe(ctx, channel)
	defer sub.Close()
	ch := sub.Channel()

	log.Printf("[Worker] Listening on %s...", channel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Printf("[Worker] Failed to parse event: %v", err)
				continue
			}
			h(msg.Channel, evt)
		}
	}
}

// Local delivers events in-process, for the memory backend and tests.
type Local struct {
	mu       sync.Mutex
	handlers map[string][]Handler
}

func NewLocal() *Local {
	return &Local{handlers: make(map[string][]Handler)}
}

func (l *Local) Publish(_ context.Context, channel string, evt Event) error {
	l.mu.Lock()
	hs := append([]Handler(nil), l.handlers[channel]...)
	l.mu.Unlock()
	for _, h := range hs {
		h(channel, evt)
	}
	return nil
}

func (l *Local) Subscribe(channel string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[channel] = append(l.handlers[channel], h)
}
