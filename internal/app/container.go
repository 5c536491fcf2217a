// Package app builds the dependency container shared by every command.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"giftcode/internal/captcha"
	"giftcode/internal/datastore"
	"giftcode/internal/discovery"
	"giftcode/internal/gameapi"
	"giftcode/internal/interfaces"
	"giftcode/internal/jobs"
	"giftcode/internal/pkg/caching"
	"giftcode/internal/pkg/limiter"
	"giftcode/internal/redeem"
	"giftcode/internal/services"
	"giftcode/internal/staging"

	"github.com/go-redis/redis_rate/v10"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/hiendaovinh/toolkit/pkg/db"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/uptrace/bun"
)

var RequiredEnvs = []string{
	services.CONFIG_SALT,
	services.CONFIG_REDIS_URL,
	services.CONFIG_CAPTCHA_SOLVER_URL,
}

var optionalEnvs = []string{
	services.CONFIG_DB_DRIVER,
	services.CONFIG_DB_DSN,
	services.CONFIG_DB_PASSWORD,
	services.CONFIG_DB_FILE,
	services.CONFIG_STAGING_BACKEND,
	services.CONFIG_STAGING_DIR,
	services.CONFIG_GAME_API_URL,
	services.CONFIG_GAME_API_RATE_PER_MINUTE,
	services.CONFIG_ERROR_CODES_FILE,
	services.CONFIG_REDDIT_SUBREDDIT,
	services.CONFIG_REDDIT_KEYWORD,
	services.CONFIG_REDDIT_USER_AGENT,
	services.CONFIG_DEFAULT_PLAYER,
	services.CONFIG_RCLONE_REMOTE,
	services.CONFIG_BATCH_DEADLINE,
	services.CONFIG_BATCH_WORKERS,
	services.CONFIG_API_KEY,
	services.CONFIG_API_MODE,
	services.CONFIG_API_ORIGINS,
	services.CONFIG_TELEGRAM_BOT_TOKEN,
	services.CONFIG_TELEGRAM_ADMIN_CHAT_ID,
	services.CONFIG_REDEEM_CRON,
}

func NewContainer(vs map[string]string) *do.Injector {
	injector := do.New()
	for _, key := range optionalEnvs {
		vs[key] = os.Getenv(key)
	}

	if vs[services.CONFIG_API_MODE] == "" {
		vs[services.CONFIG_API_MODE] = "production"
	}
	if vs[services.CONFIG_API_ORIGINS] == "" {
		vs[services.CONFIG_API_ORIGINS] = "*"
	}
	if vs[services.CONFIG_DB_DRIVER] == "" {
		vs[services.CONFIG_DB_DRIVER] = datastore.DriverSQLite
	}
	if vs[services.CONFIG_DB_FILE] == "" {
		vs[services.CONFIG_DB_FILE] = services.DEFAULT_DB_FILE
	}
	if vs[services.CONFIG_STAGING_BACKEND] == "" {
		vs[services.CONFIG_STAGING_BACKEND] = services.STAGING_BACKEND_BOLT
	}
	if vs[services.CONFIG_STAGING_DIR] == "" {
		vs[services.CONFIG_STAGING_DIR] = services.DEFAULT_STAGING_DIR
	}
	if vs[services.CONFIG_REDEEM_CRON] == "" {
		vs[services.CONFIG_REDEEM_CRON] = services.DEFAULT_REDEEM_CRON
	}

	do.ProvideNamedValue(injector, "envs", vs)

	do.Provide(injector, func(i *do.Injector) (*slog.Logger, error) {
		level := slog.LevelInfo
		if vs[services.CONFIG_API_MODE] == "debug" {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
	})

	do.Provide(injector, func(i *do.Injector) (*bun.DB, error) {
		return datastore.Open(&datastore.Config{
			Driver:   vs[services.CONFIG_DB_DRIVER],
			DSN:      vs[services.CONFIG_DB_DSN],
			Password: vs[services.CONFIG_DB_PASSWORD],
			File:     vs[services.CONFIG_DB_FILE],
		})
	})

	do.Provide(injector, func(i *do.Injector) (*datastore.Store, error) {
		bunDB, err := do.Invoke[*bun.DB](i)
		if err != nil {
			return nil, err
		}
		return datastore.NewStore(bunDB), nil
	})

	do.ProvideNamed(injector, "redis-db", func(i *do.Injector) (redis.UniversalClient, error) {
		clusterRedisURL := os.Getenv("CLUSTER_REDIS_URL")
		if clusterRedisURL != "" {
			clusterOpts, err := redis.ParseClusterURL(clusterRedisURL)
			if err != nil {
				return nil, err
			}
			return redis.NewClusterClient(clusterOpts), nil
		}
		return db.InitRedis(&db.RedisConfig{
			URL: vs[services.CONFIG_REDIS_URL],
		})
	})

	do.Provide(injector, func(i *do.Injector) (caching.Cache, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-db")
		if err != nil {
			return nil, err
		}

		return caching.NewCacheRedis(dbRedis, services.DBKeyCachePrefix(), true)
	})

	do.Provide(injector, func(i *do.Injector) (interfaces.Limiter, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-db")
		if err != nil {
			return nil, err
		}

		return limiter.NewLimiter(dbRedis)
	})

	do.Provide(injector, func(i *do.Injector) (*redsync.Redsync, error) {
		dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-db")
		if err != nil {
			return nil, err
		}

		pool := goredis.NewPool(dbRedis)
		return redsync.New(pool), nil
	})

	do.Provide(injector, func(i *do.Injector) (staging.Log, error) {
		switch vs[services.CONFIG_STAGING_BACKEND] {
		case services.STAGING_BACKEND_REDIS:
			dbRedis, err := do.InvokeNamed[redis.UniversalClient](i, "redis-db")
			if err != nil {
				return nil, err
			}
			return staging.NewRedisLog(dbRedis, services.DBKeyStaging()), nil
		case services.STAGING_BACKEND_BOLT:
			logger := do.MustInvoke[*slog.Logger](i)
			return staging.NewBoltLog(vs[services.CONFIG_STAGING_DIR], logger)
		default:
			return nil, fmt.Errorf("unsupported staging backend %q", vs[services.CONFIG_STAGING_BACKEND])
		}
	})

	do.Provide(injector, func(i *do.Injector) (*services.Rclone, error) {
		logger := do.MustInvoke[*slog.Logger](i)
		dbFile := ""
		if vs[services.CONFIG_DB_DRIVER] == datastore.DriverSQLite {
			dbFile = vs[services.CONFIG_DB_FILE]
		}
		return services.NewRclone(vs[services.CONFIG_RCLONE_REMOTE], dbFile, logger), nil
	})

	do.Provide(injector, func(i *do.Injector) (*staging.Flusher, error) {
		log, err := do.Invoke[staging.Log](i)
		if err != nil {
			return nil, err
		}
		store, err := do.Invoke[*datastore.Store](i)
		if err != nil {
			return nil, err
		}
		backup, err := do.Invoke[*services.Rclone](i)
		if err != nil {
			return nil, err
		}
		return staging.NewFlusher(log, store, backup, do.MustInvoke[*slog.Logger](i)), nil
	})

	do.Provide(injector, func(i *do.Injector) (gameapi.Config, error) {
		rateLimiter, err := do.Invoke[interfaces.Limiter](i)
		if err != nil {
			return gameapi.Config{}, err
		}

		rate := services.DEFAULT_GAME_RATE_PER_MINUTE
		if v := vs[services.CONFIG_GAME_API_RATE_PER_MINUTE]; v != "" {
			rate, err = strconv.Atoi(v)
			if err != nil || rate <= 0 {
				return gameapi.Config{}, fmt.Errorf("invalid %s %q", services.CONFIG_GAME_API_RATE_PER_MINUTE, v)
			}
		}

		return gameapi.Config{
			BaseURL:   vs[services.CONFIG_GAME_API_URL],
			Salt:      vs[services.CONFIG_SALT],
			Limiter:   rateLimiter,
			RateLimit: redis_rate.PerMinute(rate),
			Logger:    do.MustInvoke[*slog.Logger](i),
		}, nil
	})

	do.Provide(injector, func(i *do.Injector) (*captcha.Solver, error) {
		store, err := do.Invoke[*datastore.Store](i)
		if err != nil {
			return nil, err
		}
		return captcha.NewSolver(captcha.Config{
			URL:     vs[services.CONFIG_CAPTCHA_SOLVER_URL],
			Retries: 2,
			Logger:  do.MustInvoke[*slog.Logger](i),
		}, store), nil
	})

	do.Provide(injector, func(i *do.Injector) (*discovery.Reddit, error) {
		cache, err := do.Invoke[caching.Cache](i)
		if err != nil {
			return nil, err
		}
		return discovery.NewReddit(discovery.Config{
			UserAgent: vs[services.CONFIG_REDDIT_USER_AGENT],
			Logger:    do.MustInvoke[*slog.Logger](i),
		}, cache), nil
	})

	do.Provide(injector, func(i *do.Injector) (*redeem.Classifier, error) {
		table, err := redeem.LoadCodeTable(vs[services.CONFIG_ERROR_CODES_FILE])
		if err != nil {
			return nil, err
		}
		return redeem.NewClassifier(table), nil
	})

	do.Provide(injector, func(i *do.Injector) (*jobs.Registry, error) {
		return jobs.NewRegistry(), nil
	})

	do.Provide(injector, func(i *do.Injector) (*redeem.Batch, error) {
		return newBatch(i, vs)
	})

	do.ProvideValue(injector, &services.Readiness{})

	do.Provide(injector, func(i *do.Injector) (*services.ServiceRedeem, error) {
		return services.NewServiceRedeem(injector)
	})

	do.Provide(injector, func(i *do.Injector) (*services.ServicePlayer, error) {
		return services.NewServicePlayer(injector)
	})

	do.Provide(injector, func(i *do.Injector) (*services.ServiceGiftCode, error) {
		return services.NewServiceGiftCode(injector)
	})

	return injector
}

func newBatch(i *do.Injector, vs map[string]string) (*redeem.Batch, error) {
	logger := do.MustInvoke[*slog.Logger](i)

	cfg := redeem.BatchConfig{
		Source:  vs[services.CONFIG_REDDIT_SUBREDDIT],
		Keyword: vs[services.CONFIG_REDDIT_KEYWORD],
	}
	if v := vs[services.CONFIG_BATCH_DEADLINE]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", services.CONFIG_BATCH_DEADLINE, err)
		}
		cfg.Deadline = d
	}
	if v := vs[services.CONFIG_BATCH_WORKERS]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", services.CONFIG_BATCH_WORKERS, err)
		}
		cfg.Workers = n
	}

	registry, err := do.Invoke[*jobs.Registry](i)
	if err != nil {
		return nil, err
	}
	store, err := do.Invoke[*datastore.Store](i)
	if err != nil {
		return nil, err
	}
	reddit, err := do.Invoke[*discovery.Reddit](i)
	if err != nil {
		return nil, err
	}
	flusher, err := do.Invoke[*staging.Flusher](i)
	if err != nil {
		return nil, err
	}
	solver, err := do.Invoke[*captcha.Solver](i)
	if err != nil {
		return nil, err
	}
	classifier, err := do.Invoke[*redeem.Classifier](i)
	if err != nil {
		return nil, err
	}
	gameCfg, err := do.Invoke[gameapi.Config](i)
	if err != nil {
		return nil, err
	}
	rs, err := do.Invoke[*redsync.Redsync](i)
	if err != nil {
		return nil, err
	}

	lockExpiry := cfg.Deadline
	if lockExpiry <= 0 {
		lockExpiry = redeem.DefaultDeadline
	}

	deps := redeem.BatchDeps{
		Registry:   registry,
		Store:      store,
		Discovery:  reddit,
		Flusher:    flusher,
		Solver:     solver,
		Classifier: classifier,
		NewSession: func() redeem.Session {
			return gameapi.NewClient(gameCfg)
		},
		Locker: services.NewRunLocker(rs, lockExpiry+15*time.Minute, logger),
		Logger: logger,
	}

	if token := vs[services.CONFIG_TELEGRAM_BOT_TOKEN]; token != "" {
		chatIDs, err := services.ParseChatIDs(vs[services.CONFIG_TELEGRAM_ADMIN_CHAT_ID])
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", services.CONFIG_TELEGRAM_ADMIN_CHAT_ID, err)
		}
		bot, err := services.NewBot(token, chatIDs)
		if err != nil {
			return nil, err
		}
		deps.Notifier = bot
	}

	return redeem.NewBatch(deps, cfg), nil
}
