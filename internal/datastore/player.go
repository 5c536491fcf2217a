package datastore

import (
	"context"
	"time"

	"giftcode/internal/models"

	"github.com/uptrace/bun"
)

func CreateTablePlayer(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Player)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

// InsertPlayer reports false when a player with the same fid is already subscribed.
func InsertPlayer(ctx context.Context, db *bun.DB, player *models.Player) (bool, error) {
	if player.SubscribedDate.IsZero() {
		player.SubscribedDate = time.Now()
	}

	res, err := db.NewInsert().Model(player).On("CONFLICT (fid) DO NOTHING").Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func UpdatePlayerProfile(ctx context.Context, db *bun.DB, profile *models.PlayerProfile) error {
	_, err := db.NewUpdate().
		Model((*models.Player)(nil)).
		Set("nickname = ?", profile.Nickname).
		Set("kid = ?", profile.KID).
		Set("stove_lv = ?", profile.StoveLv).
		Set("stove_lv_content = ?", profile.StoveLvContent).
		Set("avatar_image = ?", profile.AvatarImage).
		Set("total_recharge_amount = ?", profile.TotalRechargeAmount).
		Where("fid = ?", profile.FID).
		Exec(ctx)
	return err
}

func DeletePlayer(ctx context.Context, db *bun.DB, fid string) (bool, error) {
	res, err := db.NewDelete().Model((*models.Player)(nil)).Where("fid = ?", fid).Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func GetPlayers(ctx context.Context, db *bun.DB) ([]models.Player, error) {
	var players []models.Player
	err := db.NewSelect().Model(&players).Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}

	return players, nil
}

func GetPlayersSortedBySubscribedDate(ctx context.Context, db *bun.DB, limit, offset int) ([]*models.Player, error) {
	var players []*models.Player
	err := db.NewSelect().Model(&players).Order("subscribed_date ASC", "id ASC").Limit(limit).Offset(offset).Scan(ctx)
	if err != nil {
		return nil, err
	}

	return players, nil
}

func FindPlayerByFID(ctx context.Context, db *bun.DB, fid string) (*models.Player, error) {
	var player models.Player
	err := db.NewSelect().Model(&player).Where("fid = ?", fid).Scan(ctx)
	if err != nil {
		return nil, err
	}

	return &player, nil
}
