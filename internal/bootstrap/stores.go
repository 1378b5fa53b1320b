package bootstrap

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"

	"github.com/tallyhq/tally-backend/config"
	"github.com/tallyhq/tally-backend/internal/docstore"
)

const redisDocPrefix = "tally:"

func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// OpenDocStore picks the document store backend named by DOCSTORE. The
// returned close func releases the Firestore client, if one was opened.
func OpenDocStore(ctx context.Context, backend string, fb *firebase.App, rdb *redis.Client) (docstore.Store, func(), error) {
	switch backend {
	case "firestore":
		if fb == nil {
			return nil, nil, fmt.Errorf("firestore document store needs Firebase credentials")
		}
		client, err := fb.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		return docstore.NewFirestoreStore(client), func() { client.Close() }, nil
	case "redis":
		return docstore.NewRedisStore(rdb, redisDocPrefix), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown document store %q", backend)
	}
}
