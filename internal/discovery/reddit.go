// Package discovery finds new gift codes in subreddit posts.
package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"giftcode/internal/pkg/caching"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/segmentio/encoding/json"
)

const (
	DefaultBaseURL   = "https://www.reddit.com"
	DefaultUserAgent = "giftcode-redeemer/1.0"
	DefaultCacheTTL  = 10 * time.Minute
)

var codePattern = regexp.MustCompile(`(?i)\*\*Code:\*\*\s*(\S+)`)

// ExtractCode returns the code announced in a post body, or "".
func ExtractCode(text string) string {
	m := codePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

type Config struct {
	BaseURL   string
	UserAgent string
	CacheTTL  time.Duration
	Timeout   time.Duration
	Logger    *slog.Logger
}

type Reddit struct {
	cfg    Config
	http   *httpclient.Client
	cache  caching.Cache
	logger *slog.Logger
}

func NewReddit(cfg Config, cache caching.Cache) *Reddit {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := heimdall.NewExponentialBackoff(time.Second, 10*time.Second, 2, 200*time.Millisecond)
	return &Reddit{
		cfg: cfg,
		http: httpclient.NewClient(
			httpclient.WithHTTPTimeout(cfg.Timeout),
			httpclient.WithRetryCount(2),
			httpclient.WithRetrier(heimdall.NewRetrier(backoff)),
		),
		cache:  cache,
		logger: logger.With("component", "discovery"),
	}
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				IsSelf   bool   `json:"is_self"`
				SelfText string `json:"selftext"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func cacheKeyCodes(source, keyword string) string {
	return fmt.Sprintf("discovery:%s:%s", strings.ToLower(source), strings.ToLower(keyword))
}

// FetchNewCodes searches the subreddit for posts of the last month matching keyword.
// Results are cached, Refresh drops them.
func (r *Reddit) FetchNewCodes(ctx context.Context, source string, keyword string) ([]string, error) {
	return caching.UseCache(ctx, r.cache, cacheKeyCodes(source, keyword), r.cfg.CacheTTL, func() ([]string, error) {
		return r.search(ctx, source, keyword)
	})
}

func (r *Reddit) Refresh(ctx context.Context, source string, keyword string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, cacheKeyCodes(source, keyword))
}

func (r *Reddit) search(ctx context.Context, source string, keyword string) ([]string, error) {
	q := url.Values{}
	q.Set("q", strings.ToLower(keyword))
	q.Set("restrict_sr", "1")
	q.Set("t", "month")
	q.Set("sort", "new")
	q.Set("limit", "100")
	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", r.cfg.BaseURL, url.PathEscape(source), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", source, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %s: status %d", source, resp.StatusCode)
	}

	var l listing
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}

	seen := map[string]bool{}
	codes := make([]string, 0)
	for _, child := range l.Data.Children {
		if !child.Data.IsSelf {
			continue
		}
		code := ExtractCode(child.Data.SelfText)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	r.logger.Info("searched gift codes", "source", source, "posts", len(l.Data.Children), "codes", len(codes))
	return codes, nil
}
