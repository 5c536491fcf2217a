package interfaces

import (
	"context"

	"github.com/go-redis/redis_rate/v10"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) error
	// Wait blocks until a slot is available or ctx is done.
	Wait(ctx context.Context, key string, limit redis_rate.Limit) error
}
