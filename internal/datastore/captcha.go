package datastore

import (
	"context"

	"giftcode/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableCaptcha(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Captcha)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

func InsertCaptcha(ctx context.Context, db *bun.DB, name string, img []byte) (int64, error) {
	captcha := &models.Captcha{Name: name, Img: img}
	_, err := db.NewInsert().Model(captcha).Returning("id").Exec(ctx)
	if err != nil {
		return 0, err
	}

	return captcha.ID, nil
}

func SetCaptchaFeedback(ctx context.Context, db *bun.DB, id int64, success bool) error {
	_, err := db.NewUpdate().
		Model((*models.Captcha)(nil)).
		Set("feedback = ?", success).
		Where("id = ?", id).
		Exec(ctx)
	return err
}
