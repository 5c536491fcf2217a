// Package gameapi talks to the game's gift code API. A Client owns its connection pool and the per-player
// login cache and is meant to live for a single batch run.
package gameapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"giftcode/internal/interfaces"

	"github.com/go-redis/redis_rate/v10"
	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/segmentio/encoding/json"
)

const (
	DefaultBaseURL             = "https://wos-giftcode-api.centurygame.com/api"
	DefaultTimeout             = 30 * time.Second
	DefaultMaxRateLimitRetries = 5
	DefaultCaptchaCooldown     = 30 * time.Second

	endpointPlayer   = "player"
	endpointCaptcha  = "captcha"
	endpointGiftCode = "gift_code"

	errCodeTokenExpired    = 40009
	errCodeCaptchaTooOften = 40100
)

var ErrNotLoggedIn = errors.New("player is not logged in")

type Config struct {
	BaseURL             string
	Salt                string
	Timeout             time.Duration
	MaxRateLimitRetries int
	CaptchaCooldown     time.Duration

	// Limiter paces every remote call when set.
	Limiter   interfaces.Limiter
	RateLimit redis_rate.Limit

	Logger *slog.Logger
}

type Client struct {
	cfg     Config
	http    *httpclient.Client
	backoff heimdall.Backoff
	logger  *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu       sync.Mutex
	tokens   map[string]*Token
	lastTime map[string]int64
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRateLimitRetries <= 0 {
		cfg.MaxRateLimitRetries = DefaultMaxRateLimitRetries
	}
	if cfg.CaptchaCooldown <= 0 {
		cfg.CaptchaCooldown = DefaultCaptchaCooldown
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg: cfg,
		http: httpclient.NewClient(
			httpclient.WithHTTPClient(&keepAliveDoer{client: &http.Client{Timeout: cfg.Timeout}}),
			httpclient.WithRetryCount(0),
		),
		backoff:  heimdall.NewExponentialBackoff(time.Second, 5*time.Minute, 2, 0),
		logger:   logger.With("component", "gameapi"),
		sleep:    sleepContext,
		now:      time.Now,
		tokens:   map[string]*Token{},
		lastTime: map[string]int64{},
	}
}

// keepAliveDoer undoes the Close flag heimdall sets on every request so the client reuses connections.
type keepAliveDoer struct {
	client *http.Client
}

func (d *keepAliveDoer) Do(req *http.Request) (*http.Response, error) {
	req.Close = false
	return d.client.Do(req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Login returns the cached token for fid or logs in. A nil token with a nil error means the login failed.
func (c *Client) Login(ctx context.Context, fid string) (*Token, error) {
	if tok := c.cached(fid); tok != nil {
		return tok, nil
	}

	params := map[string]string{
		"fid":  fid,
		"time": strconv.FormatInt(c.nextTime(fid), 10),
	}
	params["sign"] = Sign(params, c.cfg.Salt)

	env, err := c.post(ctx, endpointPlayer, fid, params)
	if err != nil || env == nil {
		return nil, err
	}
	if env.Msg != "success" {
		c.logger.Info("login failed", "fid", fid, "msg", env.Msg, "err_code", env.ErrCode)
		return nil, nil
	}

	var data loginData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			c.logger.Warn("decode login data", "fid", fid, "err", err)
		}
	}

	t, _ := strconv.ParseInt(params["time"], 10, 64)
	tok := &Token{
		FID:     fid,
		Time:    t,
		Sign:    params["sign"],
		Profile: data.profile(fid),
	}

	c.mu.Lock()
	c.tokens[fid] = tok
	c.mu.Unlock()
	return tok, nil
}

// FetchCaptcha requests a challenge for a logged in player.
func (c *Client) FetchCaptcha(ctx context.Context, fid string) (*CaptchaChallenge, error) {
	for attempt := 0; attempt <= c.cfg.MaxRateLimitRetries; attempt++ {
		tok := c.cached(fid)
		if tok == nil {
			return nil, ErrNotLoggedIn
		}

		env, err := c.post(ctx, endpointCaptcha, fid, tok.params())
		if err != nil || env == nil {
			return nil, err
		}

		switch env.ErrCode.Value {
		case errCodeTokenExpired:
			c.logger.Info("token expired, logging in again", "fid", fid)
			c.Invalidate(fid)
			tok, err := c.Login(ctx, fid)
			if err != nil || tok == nil {
				return nil, err
			}
			continue
		case errCodeCaptchaTooOften:
			c.logger.Info("captcha requested too often", "fid", fid, "cooldown", c.cfg.CaptchaCooldown)
			if err := c.sleep(ctx, c.cfg.CaptchaCooldown); err != nil {
				return nil, err
			}
			continue
		}

		if !strings.EqualFold(env.Msg, "success") {
			c.logger.Info("captcha retrieval failed", "fid", fid, "msg", env.Msg, "err_code", env.ErrCode)
			return nil, nil
		}

		var challenge CaptchaChallenge
		if err := json.Unmarshal(env.Data, &challenge); err != nil || challenge.Image == "" {
			c.logger.Warn("decode captcha", "fid", fid, "err", err)
			return nil, nil
		}
		return &challenge, nil
	}

	c.logger.Error("captcha retries exhausted", "fid", fid)
	return nil, nil
}

// Redeem submits code with the captcha solution. A nil response with a nil error is a transport failure.
func (c *Client) Redeem(ctx context.Context, fid string, code string, solution string) (*RedeemResponse, error) {
	tok := c.cached(fid)
	if tok == nil {
		return nil, ErrNotLoggedIn
	}

	params := map[string]string{
		"fid":          fid,
		"time":         strconv.FormatInt(tok.Time, 10),
		"cdk":          code,
		"captcha_code": solution,
	}
	params["sign"] = Sign(params, c.cfg.Salt)

	env, err := c.post(ctx, endpointGiftCode, fid, params)
	if err != nil || env == nil {
		return nil, err
	}
	return &RedeemResponse{
		Code:           int(env.Code),
		Msg:            env.Msg,
		ErrCode:        int(env.ErrCode.Value),
		ErrCodeMissing: !env.ErrCode.Valid,
		Data:           env.Data,
	}, nil
}

// Invalidate drops the cached login so the next Login goes to the game again.
func (c *Client) Invalidate(fid string) {
	c.mu.Lock()
	delete(c.tokens, fid)
	c.mu.Unlock()
}

func (c *Client) Close() {
	c.mu.Lock()
	c.tokens = map[string]*Token{}
	c.mu.Unlock()
}

func (c *Client) cached(fid string) *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[fid]
}

// nextTime returns a millisecond timestamp strictly greater than any previous one for fid.
func (c *Client) nextTime(fid string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UnixMilli()
	if last := c.lastTime[fid]; t <= last {
		t = last + 1
	}
	c.lastTime[fid] = t
	return t
}

// post sends one signed request, retrying only on HTTP 429. Errors are returned for cancellation only.
func (c *Client) post(ctx context.Context, endpoint string, fid string, params map[string]string) (*envelope, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s", c.cfg.BaseURL, endpoint)

	for attempt := 0; ; attempt++ {
		if c.cfg.Limiter != nil {
			if err := c.cfg.Limiter.Wait(ctx, "gameapi:"+endpoint, c.cfg.RateLimit); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.logger.Warn("rate limiter unavailable", "err", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("request failed", "endpoint", endpoint, "fid", fid, "err", err)
			return nil, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			if attempt >= c.cfg.MaxRateLimitRetries {
				c.logger.Error("rate limited, giving up", "endpoint", endpoint, "fid", fid, "attempts", attempt+1)
				return nil, nil
			}
			delay := c.backoff.Next(attempt)
			c.logger.Warn("rate limited", "endpoint", endpoint, "fid", fid, "attempt", attempt+1, "retry_in", delay)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		b, err := io.ReadAll(resp.Body)
		drain(resp)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("read response", "endpoint", endpoint, "fid", fid, "err", err)
			return nil, nil
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.logger.Warn("unexpected status", "endpoint", endpoint, "fid", fid, "status", resp.StatusCode)
			return nil, nil
		}

		var env envelope
		if err := json.Unmarshal(b, &env); err != nil {
			c.logger.Warn("decode response", "endpoint", endpoint, "fid", fid, "err", err)
			return nil, nil
		}
		return &env, nil
	}
}

func drain(resp *http.Response) {
	//nolint:errcheck
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
