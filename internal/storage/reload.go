package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// FilterReloadChannel is the redis pub/sub channel the admin surface
// publishes to after editing the filtered-word table. Subscribers re-read
// the list from storage; additions apply to live connections without a
// restart.
const FilterReloadChannel = "filters:reload"

// NewRedisClient parses the URL, pings, and returns a client.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

// WatchFilterReload subscribes to FilterReloadChannel and invokes reload on
// every message until ctx is canceled. Runs as its own goroutine; reload
// errors are logged and do not stop the watch.
func WatchFilterReload(ctx context.Context, rdb *redis.Client, reload func(context.Context) error) {
	sub := rdb.Subscribe(ctx, FilterReloadChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := reload(ctx); err != nil {
				log.Error().Err(err).Str("module", "storage.reload").Msg("filter reload failed")
				continue
			}
			log.Info().Str("module", "storage.reload").Str("payload", msg.Payload).Msg("filtered words reloaded")
		}
	}
}
