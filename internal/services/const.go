package services

import (
	"errors"
	"fmt"
	"time"
)

var ErrBatchRunLock = errors.New("batch run locked")
var ErrDefaultPlayerUnset = errors.New("DEFAULT_PLAYER is not configured")
var ErrPlayerNotFound = errors.New("player not found")
var ErrPlayerExists = errors.New("player already exists")
var ErrPlayerLogin = errors.New("player login failed")

const (
	CONFIG_DB_DRIVER                = "DB_DRIVER"
	CONFIG_DB_DSN                   = "DB_DSN"
	CONFIG_DB_PASSWORD              = "DB_PASSWORD"
	CONFIG_DB_FILE                  = "DB_FILE"
	CONFIG_REDIS_URL                = "REDIS_URL"
	CONFIG_STAGING_BACKEND          = "STAGING_BACKEND"
	CONFIG_STAGING_DIR              = "STAGING_DIR"
	CONFIG_SALT                     = "SALT"
	CONFIG_GAME_API_URL             = "GAME_API_URL"
	CONFIG_GAME_API_RATE_PER_MINUTE = "GAME_API_RATE_PER_MINUTE"
	CONFIG_CAPTCHA_SOLVER_URL       = "CAPTCHA_SOLVER_URL"
	CONFIG_ERROR_CODES_FILE         = "ERROR_CODES_FILE"
	CONFIG_REDDIT_SUBREDDIT         = "REDDIT_SUBREDDIT"
	CONFIG_REDDIT_KEYWORD           = "REDDIT_KEYWORD"
	CONFIG_REDDIT_USER_AGENT        = "REDDIT_USER_AGENT"
	CONFIG_DEFAULT_PLAYER           = "DEFAULT_PLAYER"
	CONFIG_RCLONE_REMOTE            = "RCLONE_REMOTE"
	CONFIG_BATCH_DEADLINE           = "BATCH_DEADLINE"
	CONFIG_BATCH_WORKERS            = "BATCH_WORKERS"
	CONFIG_API_KEY                  = "API_KEY"
	CONFIG_API_MODE                 = "API_MODE"
	CONFIG_API_ORIGINS              = "API_ORIGINS"
	CONFIG_TELEGRAM_BOT_TOKEN       = "TELEGRAM_BOT_TOKEN"
	CONFIG_TELEGRAM_ADMIN_CHAT_ID   = "TELEGRAM_ADMIN_CHAT_ID"
	CONFIG_REDEEM_CRON              = "REDEEM_CRON"

	STAGING_BACKEND_BOLT  = "bolt"
	STAGING_BACKEND_REDIS = "redis"

	DEFAULT_STAGING_DIR          = "./staging"
	DEFAULT_DB_FILE              = "./db/giftcode.db"
	DEFAULT_GAME_RATE_PER_MINUTE = 30
	DEFAULT_REDEEM_CRON          = "0 */6 * * *"

	PLAYER_LOGIN_RATE_LIMIT_PER_MINUTE = 20

	BACKUP_ATTEMPTS    = 3
	BACKUP_RETRY_DELAY = 5 * time.Second

	BATCH_RUN_LOCK_EXPIRY = 45 * time.Minute
	BATCH_SHUTDOWN_GRACE  = 30 * time.Second

	CACHE_TTL_15_SECONDS = 15 * time.Second
)

func LockKeyBatchRun() string {
	return "lock:batch-run"
}

func LimitKeyPlayerLogin() string {
	return "limit:player-login"
}

func DBKeyStaging() string {
	return "staging"
}

func DBKeyCachePrefix() string {
	return "giftcode"
}

func DBKeyPlayerRedemptions(fid string) string {
	return fmt.Sprintf("player:redemptions:%s", fid)
}
