package queue

import (
	"context"
	"time"

	"github.com/etcdmq/etcdmq/internal/pkg/validator"
)

const (
	// DefaultAbandonAfter - an item that exists this long with empty data is
	// treated as a leftover of a producer that crashed between create and set,
	// and is dropped.
	DefaultAbandonAfter = 5 * time.Minute
	// DefaultSessionTTLSeconds - lease TTL of the consumer liveness marker.
	DefaultSessionTTLSeconds = 15
)

type Config struct {
	// Root prefix of the queue tree in the store.
	Root string `configKey:"root" configUsage:"Root prefix of the queue." validate:"required"`
	// AbandonAfter is the age threshold for dropping never-populated items.
	AbandonAfter time.Duration `configKey:"abandonAfter" configUsage:"Age threshold for dropping empty items." validate:"gt=0"`
	// SessionTTLSeconds is the TTL of the consumer session lease.
	SessionTTLSeconds int `configKey:"sessionTtlSeconds" configUsage:"TTL of the consumer session lease." validate:"min=1"`
}

func NewConfig() Config {
	return Config{
		Root:              "queue",
		AbandonAfter:      DefaultAbandonAfter,
		SessionTTLSeconds: DefaultSessionTTLSeconds,
	}
}

func (c Config) Validate(ctx context.Context) error {
	return validator.Validate(ctx, c)
}
