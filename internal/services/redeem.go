package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"giftcode/internal/datastore"
	"giftcode/internal/jobs"
	"giftcode/internal/redeem"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
	"github.com/uptrace/bun"
)

// ServiceRedeem starts batch jobs and reports on them. Start methods return redeem.ErrJobInFlight
// unwrapped, together with the running job.
type ServiceRedeem struct {
	container     *do.Injector
	db            *bun.DB
	batch         *redeem.Batch
	registry      *jobs.Registry
	defaultPlayer string
}

func NewServiceRedeem(container *do.Injector) (*ServiceRedeem, error) {
	db, err := do.Invoke[*bun.DB](container)
	if err != nil {
		return nil, err
	}

	batch, err := do.Invoke[*redeem.Batch](container)
	if err != nil {
		return nil, err
	}

	registry, err := do.Invoke[*jobs.Registry](container)
	if err != nil {
		return nil, err
	}

	vs, err := do.InvokeNamed[map[string]string](container, "envs")
	if err != nil {
		return nil, err
	}

	return &ServiceRedeem{container, db, batch, registry, strings.TrimSpace(vs[CONFIG_DEFAULT_PLAYER])}, nil
}

// ParseSampleSize accepts "all", an empty value or a positive count as a number or a string. Zero means all.
func ParseSampleSize(n any) (int, error) {
	invalid := errorx.Wrap(fmt.Errorf("n must be \"all\" or a positive integer, got %v", n), errorx.Validation)

	switch v := n.(type) {
	case nil:
		return 0, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "all") {
			return 0, nil
		}
		i, err := strconv.Atoi(v)
		if err != nil || i <= 0 {
			return 0, invalid
		}
		return i, nil
	case float64:
		if v <= 0 || v != math.Trunc(v) || v > math.MaxInt32 {
			return 0, invalid
		}
		return int(v), nil
	case int:
		if v <= 0 {
			return 0, invalid
		}
		return v, nil
	default:
		return 0, invalid
	}
}

func (service *ServiceRedeem) StartAll(ctx context.Context, n any) (jobs.Record, error) {
	size, err := ParseSampleSize(n)
	if err != nil {
		return jobs.Record{}, err
	}
	return service.start(ctx, jobs.Options{SampleSize: size})
}

// StartExpiryCheck runs the active codes against the default player only, which marks expired codes.
func (service *ServiceRedeem) StartExpiryCheck(ctx context.Context) (jobs.Record, error) {
	if service.defaultPlayer == "" {
		return jobs.Record{}, errorx.Wrap(ErrDefaultPlayerUnset, errorx.Invalid)
	}
	return service.start(ctx, jobs.Options{Player: service.defaultPlayer})
}

func (service *ServiceRedeem) StartForPlayer(ctx context.Context, fid string) (jobs.Record, error) {
	fid, err := normalizeFID(fid)
	if err != nil {
		return jobs.Record{}, err
	}

	_, err = datastore.FindPlayerByFID(ctx, service.db, fid)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Record{}, errorx.Wrap(fmt.Errorf("%w: %s", ErrPlayerNotFound, fid), errorx.NotExist)
	}
	if err != nil {
		return jobs.Record{}, errorx.Wrap(err, errorx.Service)
	}

	return service.start(ctx, jobs.Options{Player: fid})
}

func (service *ServiceRedeem) start(ctx context.Context, opts jobs.Options) (jobs.Record, error) {
	return service.batch.Start(ctx, opts)
}

func (service *ServiceRedeem) Status(id string) (jobs.Record, bool) {
	return service.registry.Get(id)
}

func (service *ServiceRedeem) InFlight() (string, bool) {
	return service.registry.InFlight()
}

func (service *ServiceRedeem) Reset() {
	service.registry.Reset()
}

// Wait blocks until background jobs are done.
func (service *ServiceRedeem) Wait() {
	service.batch.Wait()
}

// Shutdown gives running jobs BATCH_SHUTDOWN_GRACE to finish, then cancels them and waits for their
// final flush.
func (service *ServiceRedeem) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, BATCH_SHUTDOWN_GRACE)
	defer cancel()
	return service.batch.Shutdown(ctx)
}
