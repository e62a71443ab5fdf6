// Package notify forwards cache changes to other client processes over
// Redis pub/sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nhle/workboard/internal/model"
	appsync "github.com/nhle/workboard/internal/sync"
)

// publishTimeout bounds a single publish.
const publishTimeout = 2 * time.Second

// Message is the JSON payload published for one change.
type Message struct {
	Kind    string         `json:"kind"`
	ID      string         `json:"id"`
	Reason  string         `json:"reason"`
	Task    *model.Task    `json:"task,omitempty"`
	Project *model.Project `json:"project,omitempty"`
}

// Publisher is the subset of the Redis client used here.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes confirmed snapshots. Optimistic and pending
// states stay local: other clients only see what the store accepted.
type RedisPublisher struct {
	rdb    Publisher
	prefix string
	logger *slog.Logger
}

// NewRedisPublisher returns a publisher writing to channels under prefix.
func NewRedisPublisher(rdb Publisher, prefix string, logger *slog.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = "workboard"
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisPublisher{rdb: rdb, prefix: prefix, logger: logger}
}

// NewClient builds a go-redis client from configuration.
func NewClient(cfg model.NotifyConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Prefix returns the channel namespace.
func (p *RedisPublisher) Prefix() string { return p.prefix }

// Channel returns the channel name for a key: <prefix>:<kind>:<id>.
func (p *RedisPublisher) Channel(k appsync.Key) string {
	return fmt.Sprintf("%s:%s:%s", p.prefix, k.Kind, k.ID)
}

// Publish sends ch if it carries a confirmed value.
func (p *RedisPublisher) Publish(ctx context.Context, ch appsync.Change) error {
	if !shouldPublish(ch) {
		return nil
	}
	b, err := json.Marshal(Message{
		Kind:    ch.Key.Kind,
		ID:      ch.Key.ID,
		Reason:  string(ch.Reason),
		Task:    ch.Task,
		Project: ch.Project,
	})
	if err != nil {
		return fmt.Errorf("encoding change %s: %w", ch.Key, err)
	}
	if err := p.rdb.Publish(ctx, p.Channel(ch.Key), b).Err(); err != nil {
		return fmt.Errorf("publishing change %s: %w", ch.Key, err)
	}
	return nil
}

// Observer adapts the publisher to a cache observer. Publishing happens
// in the background so the cache is never blocked by Redis.
func (p *RedisPublisher) Observer() appsync.Observer {
	return func(ch appsync.Change) {
		if !shouldPublish(ch) {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := p.Publish(ctx, ch); err != nil {
				p.logger.Warn("publish failed", "key", ch.Key.String(), "error", err)
			}
		}()
	}
}

// Listen subscribes to every channel under prefix and merges received
// snapshots into c until ctx is done. Echoes of this process's own
// publishes are ignored by the cache's version check.
func Listen(ctx context.Context, rdb *redis.Client, prefix string, c *appsync.Cache, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ps := rdb.PSubscribe(ctx, prefix+":*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s:*: %w", prefix, err)
	}

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			m, err := Decode(msg.Payload)
			if err != nil {
				logger.Warn("ignoring malformed change", "channel", msg.Channel, "error", err)
				continue
			}
			if Apply(c, m) {
				logger.Debug("merged remote change", "kind", m.Kind, "id", m.ID)
			}
		}
	}
}

// Decode parses a published payload.
func Decode(payload string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return Message{}, fmt.Errorf("decoding change: %w", err)
	}
	return m, nil
}

// Apply merges a received message into the cache. It reports whether the
// cache accepted it.
func Apply(c *appsync.Cache, m Message) bool {
	switch {
	case m.Task != nil:
		return c.Merge(*m.Task)
	case m.Project != nil:
		return c.MergeProject(*m.Project)
	}
	return false
}

func shouldPublish(ch appsync.Change) bool {
	if ch.Pending {
		return false
	}
	// Merged changes came from another process and are not echoed.
	return ch.Reason == appsync.ReasonConfirmed && (ch.Task != nil || ch.Project != nil)
}
