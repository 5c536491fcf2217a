package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Redemption struct {
	bun.BaseModel `bun:"table:redemptions"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	PlayerID      string    `bun:"player_id,notnull" json:"player_id"`
	Code          string    `bun:"code,notnull" json:"code"`
	RedeemedDate  time.Time `bun:"redeemed_date" json:"redeemed_date"`
}

// WorkUnit is one (player, code) pair waiting to be redeemed. It is never persisted.
type WorkUnit struct {
	FID  string `bun:"fid" json:"fid"`
	Code string `bun:"code" json:"code"`
}
