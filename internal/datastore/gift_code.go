package datastore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"giftcode/internal/models"

	"github.com/uptrace/bun"
)

var ErrGiftCodeNotFound = errors.New("gift code not found")

func CreateTableGiftCode(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.GiftCode)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.GiftCode)(nil)).Index("index_giftcodes_status").IfNotExists().Column("status").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

// InsertGiftCode adds an Active code and reports false when the code is already known.
func InsertGiftCode(ctx context.Context, db *bun.DB, code string) (bool, error) {
	now := time.Now()
	giftCode := &models.GiftCode{
		Code:        code,
		CreatedDate: now,
		Status:      models.GiftCodeActive,
		LastChecked: now,
	}

	res, err := db.NewInsert().Model(giftCode).On("CONFLICT (code) DO NOTHING").Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func GetActiveGiftCodes(ctx context.Context, db *bun.DB) ([]string, error) {
	codes := make([]string, 0)
	err := db.NewSelect().
		Model((*models.GiftCode)(nil)).
		Column("code").
		Where("status = ?", models.GiftCodeActive).
		Order("id ASC").
		Scan(ctx, &codes)
	if err != nil {
		return nil, err
	}

	return codes, nil
}

func GetGiftCodes(ctx context.Context, db *bun.DB) ([]models.GiftCode, error) {
	giftCodes := make([]models.GiftCode, 0)
	err := db.NewSelect().Model(&giftCodes).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	return giftCodes, nil
}

func FindGiftCode(ctx context.Context, db *bun.DB, code string) (*models.GiftCode, error) {
	var giftCode models.GiftCode
	err := db.NewSelect().Model(&giftCode).Where("code = ?", code).Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &giftCode, nil
}

// DeactivateGiftCode moves an Active code to Inactive. It reports false when the code was already Inactive.
func DeactivateGiftCode(ctx context.Context, db *bun.DB, code string) (bool, error) {
	giftCode, err := FindGiftCode(ctx, db, code)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrGiftCodeNotFound
	}
	if err != nil {
		return false, err
	}

	if giftCode.Status == models.GiftCodeInactive {
		return false, nil
	}

	_, err = db.NewUpdate().
		Model((*models.GiftCode)(nil)).
		Set("status = ?", models.GiftCodeInactive).
		Set("last_checked = ?", time.Now()).
		Where("code = ?", code).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	return true, nil
}
