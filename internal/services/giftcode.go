package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"giftcode/internal/datastore"
	"giftcode/internal/discovery"
	"giftcode/internal/models"
	"giftcode/internal/redeem"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/samber/do"
	"github.com/uptrace/bun"
)

type ServiceGiftCode struct {
	container *do.Injector
	db        *bun.DB
	discovery *discovery.Reddit
	backup    *Rclone
	source    string
	keyword   string
}

func NewServiceGiftCode(container *do.Injector) (*ServiceGiftCode, error) {
	db, err := do.Invoke[*bun.DB](container)
	if err != nil {
		return nil, err
	}

	reddit, err := do.Invoke[*discovery.Reddit](container)
	if err != nil {
		return nil, err
	}

	backup, err := do.Invoke[*Rclone](container)
	if err != nil {
		return nil, err
	}

	vs, err := do.InvokeNamed[map[string]string](container, "envs")
	if err != nil {
		return nil, err
	}

	source := vs[CONFIG_REDDIT_SUBREDDIT]
	if source == "" {
		source = redeem.DefaultSource
	}
	keyword := vs[CONFIG_REDDIT_KEYWORD]
	if keyword == "" {
		keyword = redeem.DefaultKeyword
	}

	return &ServiceGiftCode{container, db, reddit, backup, source, keyword}, nil
}

func (service *ServiceGiftCode) List(ctx context.Context) ([]models.GiftCode, error) {
	giftCodes, err := datastore.GetGiftCodes(ctx, service.db)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}
	return giftCodes, nil
}

// Fetch bypasses the discovery cache and stores every code not seen before.
func (service *ServiceGiftCode) Fetch(ctx context.Context) (*models.FetchGiftCodesResponse, error) {
	if err := service.discovery.Refresh(ctx, service.source, service.keyword); err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}

	fetched, err := service.discovery.FetchNewCodes(ctx, service.source, service.keyword)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}

	newCodes := make([]string, 0)
	for _, code := range fetched {
		inserted, err := datastore.InsertGiftCode(ctx, service.db, code)
		if err != nil {
			return nil, errorx.Wrap(err, errorx.Service)
		}
		if inserted {
			newCodes = append(newCodes, code)
		}
	}

	res := &models.FetchGiftCodesResponse{
		Message:  "Gift codes fetched.",
		NewCodes: newCodes,
		Backup:   BackupStatus(nil),
	}
	if len(newCodes) > 0 {
		res.Backup = BackupStatus(service.backup.Backup(ctx))
	}
	return res, nil
}

func (service *ServiceGiftCode) Deactivate(ctx context.Context, code string) (*models.MutationResponse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errorx.Wrap(errors.New("code is required"), errorx.Validation)
	}

	changed, err := datastore.DeactivateGiftCode(ctx, service.db, code)
	if errors.Is(err, datastore.ErrGiftCodeNotFound) {
		return nil, errorx.Wrap(fmt.Errorf("%w: %s", err, code), errorx.NotExist)
	}
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}

	if !changed {
		return &models.MutationResponse{
			Message: fmt.Sprintf("Gift code '%s' is already inactive.", code),
			Backup:  BackupStatus(nil),
		}, nil
	}

	return &models.MutationResponse{
		Message: fmt.Sprintf("Gift code '%s' deactivated.", code),
		Backup:  BackupStatus(service.backup.Backup(ctx)),
	}, nil
}
