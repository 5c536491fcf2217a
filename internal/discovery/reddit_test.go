package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"giftcode/internal/pkg/caching"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

const searchResult = `{"data":{"children":[
	{"data":{"is_self":true,"selftext":"New one!\n\n**Code:** WOS2024 \n\nenjoy"}},
	{"data":{"is_self":true,"selftext":"**code:**   Summer99"}},
	{"data":{"is_self":false,"selftext":"**Code:** LINKPOST"}},
	{"data":{"is_self":true,"selftext":"no code here"}},
	{"data":{"is_self":true,"selftext":"**Code:** WOS2024"}}
]}}`

type RedditSuite struct {
	suite.Suite
	hits   atomic.Int32
	server *httptest.Server
	reddit *Reddit
	ctx    context.Context
}

func TestRedditSuite(t *testing.T) {
	suite.Run(t, new(RedditSuite))
}

func (s *RedditSuite) SetupTest() {
	s.ctx = context.Background()
	s.hits.Store(0)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if r.URL.Path != "/r/whiteoutsurvival/search.json" || r.URL.Query().Get("q") != "gift code" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(searchResult))
	}))

	mini := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	cache, err := caching.NewCacheRedis(client, "test", false)
	s.Require().NoError(err)

	s.reddit = NewReddit(Config{BaseURL: s.server.URL}, cache)
}

func (s *RedditSuite) TearDownTest() {
	s.server.Close()
}

func (s *RedditSuite) TestFetchExtractsCodesFromSelfPosts() {
	codes, err := s.reddit.FetchNewCodes(s.ctx, "whiteoutsurvival", "Gift Code")
	s.Require().NoError(err)
	s.Equal([]string{"WOS2024", "Summer99"}, codes)
}

func (s *RedditSuite) TestFetchIsCachedUntilRefresh() {
	_, err := s.reddit.FetchNewCodes(s.ctx, "whiteoutsurvival", "gift code")
	s.Require().NoError(err)
	_, err = s.reddit.FetchNewCodes(s.ctx, "whiteoutsurvival", "gift code")
	s.Require().NoError(err)
	s.Equal(int32(1), s.hits.Load())

	s.Require().NoError(s.reddit.Refresh(s.ctx, "whiteoutsurvival", "gift code"))
	_, err = s.reddit.FetchNewCodes(s.ctx, "whiteoutsurvival", "gift code")
	s.Require().NoError(err)
	s.Equal(int32(2), s.hits.Load())
}

func (s *RedditSuite) TestFetchErrorIsNotCached() {
	_, err := s.reddit.FetchNewCodes(s.ctx, "unknown", "gift code")
	s.Error(err)
}

func (s *RedditSuite) TestExtractCode() {
	s.Equal("ABC", ExtractCode("**Code:** ABC"))
	s.Equal("", ExtractCode("Code: ABC"))
}
