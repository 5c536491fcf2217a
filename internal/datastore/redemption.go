package datastore

import (
	"context"
	"time"

	"giftcode/internal/models"

	"github.com/uptrace/bun"
)

func CreateTableRedemption(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.Redemption)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().Model((*models.Redemption)(nil)).Index("index_redemptions_player_id_code").IfNotExists().Unique().Column("player_id", "code").Exec(ctx)
	if err != nil {
		return err
	}

	return nil
}

// InsertRedemption is idempotent: recording the same (player, code) twice keeps a single row.
func InsertRedemption(ctx context.Context, db *bun.DB, fid string, code string) error {
	redemption := &models.Redemption{
		PlayerID:     fid,
		Code:         code,
		RedeemedDate: time.Now(),
	}

	_, err := db.NewInsert().Model(redemption).On("CONFLICT (player_id, code) DO NOTHING").Exec(ctx)
	return err
}

func GetRedeemedCodes(ctx context.Context, db *bun.DB, fid string) ([]string, error) {
	codes := make([]string, 0)
	err := db.NewSelect().
		Model((*models.Redemption)(nil)).
		Column("code").
		Where("player_id = ?", fid).
		Order("id ASC").
		Scan(ctx, &codes)
	if err != nil {
		return nil, err
	}

	return codes, nil
}

// GetUnredeemedWorkUnits lists every (player, Active code) pair without a redemption, grouped by code.
func GetUnredeemedWorkUnits(ctx context.Context, db *bun.DB) ([]models.WorkUnit, error) {
	units := make([]models.WorkUnit, 0)
	err := db.NewRaw(`
		SELECT p.fid, g.code
		FROM players p
		CROSS JOIN giftcodes g
		LEFT JOIN redemptions r ON p.fid = r.player_id AND g.code = r.code
		WHERE r.code IS NULL AND g.status = ?
		ORDER BY g.id, p.id`, models.GiftCodeActive).Scan(ctx, &units)
	if err != nil {
		return nil, err
	}

	return units, nil
}
