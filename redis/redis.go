package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var RedisClient *goredis.Client

// InitRedis connects to addr and stores the client in RedisClient. An empty
// address or a failed ping leaves RedisClient nil and the editor runs without
// snapshot publishing.
func InitRedis(ctx context.Context, addr string, log zerolog.Logger) *goredis.Client {
	RedisClient = nil
	if addr == "" {
		log.Info().Msg("Redis address not configured. Running without Redis.")
		return nil
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("Redis not available. Running without Redis.")
		_ = client.Close()
		return nil
	}

	log.Info().Str("address", addr).Msg("Redis connected successfully.")
	RedisClient = client
	return client
}

// Close releases RedisClient if one is connected.
func Close() error {
	if RedisClient == nil {
		return nil
	}
	err := RedisClient.Close()
	RedisClient = nil
	return err
}
