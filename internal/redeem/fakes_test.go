package redeem

import (
	"context"
	"sort"
	"sync"

	"giftcode/internal/gameapi"
	"giftcode/internal/models"
	"giftcode/internal/staging"
)

// memLog is an in-memory staging log.
type memLog struct {
	mu      sync.Mutex
	entries []staging.Entry
}

func (l *memLog) Append(ctx context.Context, entry staging.Entry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e == entry {
			return false, nil
		}
	}
	l.entries = append(l.entries, entry)
	return true, nil
}

func (l *memLog) Replay(ctx context.Context, applier staging.Applier) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, kind := range staging.Kinds {
		for _, e := range l.entries {
			if e.Kind() != kind {
				continue
			}
			if err := e.Apply(ctx, applier); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (l *memLog) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	return nil
}

func (l *memLog) Empty(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries) == 0, nil
}

func (l *memLog) kinds() map[staging.Kind]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[staging.Kind]int{}
	for _, e := range l.entries {
		out[e.Kind()]++
	}
	return out
}

// fakeGame answers redeem calls per code with a scripted sequence of responses.
type fakeGame struct {
	mu          sync.Mutex
	loginFails  map[string]bool
	noCaptcha   int
	responses   map[string][]*gameapi.RedeemResponse
	blockOn     map[string]bool
	logins      int
	invalidated int
	captchas    int
	redeems     map[string]int
	closed      int
}

func newFakeGame() *fakeGame {
	return &fakeGame{
		loginFails: map[string]bool{},
		responses:  map[string][]*gameapi.RedeemResponse{},
		blockOn:    map[string]bool{},
		redeems:    map[string]int{},
	}
}

func (g *fakeGame) Login(ctx context.Context, fid string) (*gameapi.Token, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logins++
	if g.loginFails[fid] {
		return nil, nil
	}
	return &gameapi.Token{FID: fid, Profile: models.PlayerProfile{FID: fid, Nickname: "p" + fid}}, nil
}

func (g *fakeGame) FetchCaptcha(ctx context.Context, fid string) (*gameapi.CaptchaChallenge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captchas++
	if g.noCaptcha > 0 {
		g.noCaptcha--
		return nil, nil
	}
	return &gameapi.CaptchaChallenge{Image: "aGVsbG8="}, nil
}

func (g *fakeGame) Redeem(ctx context.Context, fid string, code string, solution string) (*gameapi.RedeemResponse, error) {
	g.mu.Lock()
	g.redeems[code]++
	block := g.blockOn[code]
	var resp *gameapi.RedeemResponse
	if queue := g.responses[code]; len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			g.responses[code] = queue[1:]
		}
	}
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return resp, nil
}

func (g *fakeGame) Invalidate(fid string) {
	g.mu.Lock()
	g.invalidated++
	g.mu.Unlock()
}

func (g *fakeGame) Close() {
	g.mu.Lock()
	g.closed++
	g.mu.Unlock()
}

func (g *fakeGame) redeemCalls(code string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.redeems[code]
}

func (g *fakeGame) respond(code string, errCodes ...int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range errCodes {
		g.responses[code] = append(g.responses[code], &gameapi.RedeemResponse{Msg: "x", ErrCode: c})
	}
}

type fakeSolver struct {
	mu   sync.Mutex
	next int64
}

func (s *fakeSolver) Solve(ctx context.Context, image string) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return "abcd", s.next, nil
}

// fakeStore keeps players, codes and redemptions in memory with the durable store semantics.
type fakeStore struct {
	mu          sync.Mutex
	players     []string
	codes       []string
	inactive    map[string]bool
	redemptions map[[2]string]bool
	feedback    map[int64]bool
	discovered  []string
}

func newFakeStore(players []string, codes []string) *fakeStore {
	return &fakeStore{
		players:     players,
		codes:       codes,
		inactive:    map[string]bool{},
		redemptions: map[[2]string]bool{},
		feedback:    map[int64]bool{},
	}
}

func (s *fakeStore) ListPlayers(ctx context.Context) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Player, len(s.players))
	for i, fid := range s.players {
		out[i] = models.Player{FID: fid}
	}
	return out, nil
}

func (s *fakeStore) AddGiftCode(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.codes {
		if c == code {
			return false, nil
		}
	}
	s.codes = append(s.codes, code)
	return true, nil
}

func (s *fakeStore) ListActiveGiftCodes(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.codes {
		if !s.inactive[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) ListUnredeemed(ctx context.Context) ([]models.WorkUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WorkUnit
	for _, c := range s.codes {
		if s.inactive[c] {
			continue
		}
		for _, p := range s.players {
			if !s.redemptions[[2]string{p, c}] {
				out = append(out, models.WorkUnit{FID: p, Code: c})
			}
		}
	}
	return out, nil
}

func (s *fakeStore) ListRedeemedCodes(ctx context.Context, fid string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.redemptions {
		if k[0] == fid {
			out = append(out, k[1])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fakeStore) RecordRedemption(ctx context.Context, fid string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redemptions[[2]string{fid, code}] = true
	return nil
}

func (s *fakeStore) DeactivateGiftCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inactive[code] = true
	return nil
}

func (s *fakeStore) SetCaptchaFeedback(ctx context.Context, solveID int64, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback[solveID] = success
	return nil
}

func (s *fakeStore) UpdatePlayerProfile(ctx context.Context, profile *models.PlayerProfile) error {
	return nil
}

func (s *fakeStore) redeemed(fid, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redemptions[[2]string{fid, code}]
}

func (s *fakeStore) isInactive(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inactive[code]
}

type fakeDiscovery struct {
	codes []string
	err   error
}

func (d *fakeDiscovery) FetchNewCodes(ctx context.Context, source string, keyword string) ([]string, error) {
	return d.codes, d.err
}
