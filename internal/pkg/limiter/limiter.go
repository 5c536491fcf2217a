package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis_rate/v10"
	toolkit "github.com/hiendaovinh/toolkit/pkg/limiter"
	"github.com/redis/go-redis/v9"
)

var ErrLimited = toolkit.ErrRateLimited

type Limiter struct {
	limiter *redis_rate.Limiter
}

func NewLimiter(client redis.UniversalClient) (*Limiter, error) {
	if client == nil {
		return nil, errors.New("invalid redis client")
	}
	return &Limiter{redis_rate.NewLimiter(client)}, nil
}

func (l *Limiter) Allow(ctx context.Context, key string, limit redis_rate.Limit) error {
	res, err := l.limiter.Allow(ctx, key, limit)
	if err != nil {
		return err
	}
	if res.Allowed == 0 {
		return ErrLimited
	}
	return nil
}

func (l *Limiter) Wait(ctx context.Context, key string, limit redis_rate.Limit) error {
	for {
		res, err := l.limiter.Allow(ctx, key, limit)
		if err != nil {
			return err
		}
		if res.Allowed > 0 {
			return nil
		}

		wait := res.RetryAfter
		if wait <= 0 {
			wait = 100 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
