package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"giftcode/internal/datastore"
	"giftcode/internal/gameapi"
	"giftcode/internal/interfaces"
	"giftcode/internal/models"
	"giftcode/internal/pkg/caching"

	"github.com/go-redis/redis_rate/v10"
	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/limiter"
	"github.com/samber/do"
	"github.com/uptrace/bun"
)

type ServicePlayer struct {
	container *do.Injector
	db        *bun.DB
	cache     caching.Cache
	limiter   interfaces.Limiter
	backup    *Rclone
	gameCfg   gameapi.Config
}

func NewServicePlayer(container *do.Injector) (*ServicePlayer, error) {
	db, err := do.Invoke[*bun.DB](container)
	if err != nil {
		return nil, err
	}

	cache, err := do.Invoke[caching.Cache](container)
	if err != nil {
		return nil, err
	}

	limiter, err := do.Invoke[interfaces.Limiter](container)
	if err != nil {
		return nil, err
	}

	backup, err := do.Invoke[*Rclone](container)
	if err != nil {
		return nil, err
	}

	gameCfg, err := do.Invoke[gameapi.Config](container)
	if err != nil {
		return nil, err
	}

	return &ServicePlayer{container, db, cache, limiter, backup, gameCfg}, nil
}

func (service *ServicePlayer) List(ctx context.Context) ([]models.Player, error) {
	players, err := datastore.GetPlayers(ctx, service.db)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}
	return players, nil
}

func (service *ServicePlayer) Find(ctx context.Context, fid string) (*models.Player, error) {
	player, err := datastore.FindPlayerByFID(ctx, service.db, fid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errorx.Wrap(ErrPlayerNotFound, errorx.NotExist)
	}
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}
	return player, nil
}

// Create logs fid in and subscribes it with the profile the game returned.
func (service *ServicePlayer) Create(ctx context.Context, fid string) (*models.MutationResponse, error) {
	profile, err := service.login(ctx, fid)
	if err != nil {
		return nil, err
	}

	inserted, err := datastore.InsertPlayer(ctx, service.db, profile.ToPlayer())
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}
	if !inserted {
		return nil, errorx.Wrap(fmt.Errorf("%w: %s", ErrPlayerExists, fid), errorx.Invalid)
	}

	return &models.MutationResponse{
		Message: fmt.Sprintf("Player '%s' added successfully.", fid),
		Backup:  BackupStatus(service.backup.Backup(ctx)),
	}, nil
}

// Update refreshes the stored profile of a subscribed player from a new login.
func (service *ServicePlayer) Update(ctx context.Context, fid string) (*models.MutationResponse, error) {
	if _, err := service.Find(ctx, fid); err != nil {
		return nil, err
	}

	profile, err := service.login(ctx, fid)
	if err != nil {
		return nil, err
	}

	if err := datastore.UpdatePlayerProfile(ctx, service.db, profile); err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}

	return &models.MutationResponse{
		Message: fmt.Sprintf("Player '%s' info updated.", fid),
		Backup:  BackupStatus(service.backup.Backup(ctx)),
	}, nil
}

func (service *ServicePlayer) Remove(ctx context.Context, fid string) (*models.MutationResponse, error) {
	fid, err := normalizeFID(fid)
	if err != nil {
		return nil, err
	}

	deleted, err := datastore.DeletePlayer(ctx, service.db, fid)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}
	if !deleted {
		return nil, errorx.Wrap(ErrPlayerNotFound, errorx.NotExist)
	}

	return &models.MutationResponse{
		Message: fmt.Sprintf("Player '%s' removed.", fid),
		Backup:  BackupStatus(service.backup.Backup(ctx)),
	}, nil
}

func (service *ServicePlayer) Redemptions(ctx context.Context, fid string) (*models.PlayerRedemptions, error) {
	fid, err := normalizeFID(fid)
	if err != nil {
		return nil, err
	}

	callback := func() ([]string, error) {
		return datastore.GetRedeemedCodes(ctx, service.db, fid)
	}
	codes, err := caching.UseCache(ctx, service.cache, DBKeyPlayerRedemptions(fid), CACHE_TTL_15_SECONDS, callback)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}

	return &models.PlayerRedemptions{PlayerID: fid, RedeemedCodes: codes}, nil
}

// Register subscribes fid unless it already is. It is used at start up for the default player.
func (service *ServicePlayer) Register(ctx context.Context, fid string) error {
	if _, err := service.Find(ctx, fid); err == nil {
		return nil
	}

	profile, err := service.login(ctx, fid)
	if err != nil {
		return err
	}
	_, err = datastore.InsertPlayer(ctx, service.db, profile.ToPlayer())
	return err
}

func (service *ServicePlayer) login(ctx context.Context, fid string) (*models.PlayerProfile, error) {
	fid, err := normalizeFID(fid)
	if err != nil {
		return nil, err
	}

	err = service.limiter.Allow(ctx, LimitKeyPlayerLogin(), redis_rate.PerMinute(PLAYER_LOGIN_RATE_LIMIT_PER_MINUTE))
	if err != nil {
		if errors.Is(err, limiter.ErrRateLimited) {
			return nil, errorx.Wrap(err, errorx.RateLimiting)
		}
		return nil, errorx.Wrap(err, errorx.Service)
	}

	client := gameapi.NewClient(service.gameCfg)
	defer client.Close()

	tok, err := client.Login(ctx, fid)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}
	if tok == nil {
		return nil, errorx.Wrap(fmt.Errorf("%w: %s", ErrPlayerLogin, fid), errorx.Invalid)
	}

	return &tok.Profile, nil
}

func normalizeFID(fid string) (string, error) {
	fid = strings.TrimSpace(fid)
	if fid == "" {
		return "", errorx.Wrap(errors.New("player_id is required"), errorx.Validation)
	}
	return fid, nil
}
