// Package changes tells connected front ends that a user's data moved so they
// can refresh cached views. Notices go out on the Redis channel
// tally:changes:{uid}.
package changes

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/tallyhq/tally-backend/internal/logging"
)

const channelPrefix = "tally:changes:"

// Notice describes one mutation.
type Notice struct {
	Type   string `json:"type"`   // project, task, invoice, time, client, subscription
	ID     string `json:"id"`     // id of the mutated entity
	Action string `json:"action"` // created, updated, deleted, ...
}

type Publisher interface {
	Publish(ctx context.Context, ownerID string, n Notice)
}

// Channel returns the Pub/Sub channel for a user.
func Channel(ownerID string) string {
	return channelPrefix + ownerID
}

type RedisPublisher struct {
	client *redis.Client
	log    logging.Logger
}

func NewRedisPublisher(client *redis.Client, log logging.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

// Publish is best effort: failures are logged, never returned.
func (p *RedisPublisher) Publish(ctx context.Context, ownerID string, n Notice) {
	data, err := json.Marshal(n)
	if err != nil {
		p.log.Warn(ctx, "change notice encode failed", "error", err)
		return
	}
	if err := p.client.Publish(ctx, Channel(ownerID), data).Err(); err != nil {
		p.log.Warn(ctx, "change notice publish failed", "owner", ownerID, "type", n.Type, "error", err)
	}
}

// Nop drops every notice.
type Nop struct{}

func (Nop) Publish(context.Context, string, Notice) {}
