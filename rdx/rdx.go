package rdx

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Conn is the process-wide client, set by Connect.
var Conn *redis.Client

// Connect dials redis and pings it once.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	Conn = client
	log.Printf("[rdx] connected to %s", addr)
	return client, nil
}

// KV persists held state as plain redis string keys.
type KV struct {
	client redis.Cmdable
}

func NewKV(client redis.Cmdable) *KV {
	return &KV{client: client}
}

func (k *KV) Get(ctx context.Context, name string) (string, bool, error) {
	v, err := k.client.Get(ctx, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", name, err)
	}
	return v, true, nil
}

func (k *KV) Set(ctx context.Context, name, value string) error {
	if err := k.client.Set(ctx, name, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (k *KV) Remove(ctx context.Context, name string) error {
	if err := k.client.Del(ctx, name).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", name, err)
	}
	return nil
}
