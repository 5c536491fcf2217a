package redeem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"giftcode/internal/models"

	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 3

type Runner interface {
	Run(ctx context.Context, unit models.WorkUnit) UnitResult
	Pace(ctx context.Context) error
}

type Summary struct {
	Units     int            `json:"units"`
	Processed int            `json:"processed"`
	Redeemed  int            `json:"redeemed"`
	Expired   int            `json:"expired"`
	Abandoned int            `json:"abandoned"`
	// Cancelled counts the abandoned units that were cut short by the context.
	Cancelled int            `json:"cancelled"`
	Verdicts  map[string]int `json:"verdicts,omitempty"`
	// Codes lists the code groups in processing order.
	Codes []string `json:"codes"`
	Err   error    `json:"-"`
}

func (s *Summary) add(res UnitResult) {
	s.Processed++
	switch res.State {
	case Succeeded:
		s.Redeemed++
	case CodeExpired:
		s.Expired++
	default:
		s.Abandoned++
		if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
			s.Cancelled++
		}
	}
	if res.Attempts > 0 {
		if s.Verdicts == nil {
			s.Verdicts = map[string]int{}
		}
		s.Verdicts[res.Outcome.Verdict.String()]++
	}
}

// Complete reports whether every unit ran to its own end.
func (s *Summary) Complete() bool {
	return s.Processed == s.Units && s.Cancelled == 0
}

// Pool drains work units with a fixed number of workers, one code group at a time.
type Pool struct {
	runner  Runner
	workers int
	budget  int
	logger  *slog.Logger
}

func NewPool(runner Runner, workers int, budget int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{runner: runner, workers: workers, budget: budget, logger: logger}
}

// groupByCode partitions units by code keeping the order in which codes first appear.
func groupByCode(units []models.WorkUnit) ([]string, map[string][]models.WorkUnit) {
	var order []string
	groups := map[string][]models.WorkUnit{}
	for _, u := range units {
		if _, ok := groups[u.Code]; !ok {
			order = append(order, u.Code)
		}
		groups[u.Code] = append(groups[u.Code], u)
	}
	return order, groups
}

// Run processes units and reports progress through progress, at most the pool budget in total.
// It returns once every worker has exited, including after cancellation.
func (p *Pool) Run(ctx context.Context, units []models.WorkUnit, progress func(int)) Summary {
	order, groups := groupByCode(units)
	summary := Summary{Units: len(units), Codes: order}
	if len(units) == 0 {
		return summary
	}

	var (
		mu       sync.Mutex
		reported int
		pending  sync.WaitGroup
	)
	step := p.budget / len(units)
	report := func() {
		mu.Lock()
		delta := step
		if reported+delta > p.budget {
			delta = p.budget - reported
		}
		reported += delta
		mu.Unlock()
		if delta > 0 && progress != nil {
			progress(delta)
		}
	}

	queue := make(chan models.WorkUnit)
	var g errgroup.Group
	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			for unit := range queue {
				res, err := p.runOne(ctx, unit)
				if err != nil {
					p.logger.Error("worker panic", "worker", worker, "fid", unit.FID, "code", unit.Code, "err", err)
				}

				mu.Lock()
				summary.add(res)
				if err != nil && summary.Err == nil {
					summary.Err = err
				}
				mu.Unlock()

				report()
				//nolint:errcheck
				p.runner.Pace(ctx)
				pending.Done()
			}
			return nil
		})
	}

feed:
	for _, code := range order {
		group := groups[code]
		pending.Add(len(group))
		for i, unit := range group {
			if ctx.Err() != nil {
				pending.Add(-(len(group) - i))
				break feed
			}
			select {
			case queue <- unit:
			case <-ctx.Done():
				pending.Add(-(len(group) - i))
				break feed
			}
		}
		pending.Wait()
		p.logger.Info("finished code", "code", code, "units", len(group))
	}
	pending.Wait()

	close(queue)
	//nolint:errcheck
	g.Wait()
	return summary
}

func (p *Pool) runOne(ctx context.Context, unit models.WorkUnit) (res UnitResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing %s/%s: %v", unit.FID, unit.Code, r)
			res = UnitResult{Unit: unit, State: Abandoned, Err: err}
		}
	}()
	return p.runner.Run(ctx, unit), nil
}
