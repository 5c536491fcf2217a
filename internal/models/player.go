package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Player struct {
	bun.BaseModel       `bun:"table:players"`
	ID                  int64     `bun:"id,pk,autoincrement" json:"player_id"`
	FID                 string    `bun:"fid,unique,notnull" json:"fid"`
	Nickname            string    `bun:"nickname,notnull" json:"nickname"`
	KID                 int       `bun:"kid,notnull" json:"kid"`
	StoveLv             int       `bun:"stove_lv,notnull" json:"stove_lv"`
	StoveLvContent      int       `bun:"stove_lv_content,notnull" json:"stove_lv_content"`
	AvatarImage         string    `bun:"avatar_image,notnull" json:"avatar_image"`
	TotalRechargeAmount int64     `bun:"total_recharge_amount,notnull" json:"total_recharge_amount"`
	SubscribedDate      time.Time `bun:"subscribed_date" json:"subscribed_date"`
}

// PlayerProfile is the part of a player refreshed from the game after a login.
type PlayerProfile struct {
	FID                 string `json:"fid" msgpack:"fid"`
	Nickname            string `json:"nickname" msgpack:"nickname"`
	KID                 int    `json:"kid" msgpack:"kid"`
	StoveLv             int    `json:"stove_lv" msgpack:"stove_lv"`
	StoveLvContent      int    `json:"stove_lv_content" msgpack:"stove_lv_content"`
	AvatarImage         string `json:"avatar_image" msgpack:"avatar_image"`
	TotalRechargeAmount int64  `json:"total_recharge_amount" msgpack:"total_recharge_amount"`
}

func (p *PlayerProfile) ToPlayer() *Player {
	return &Player{
		FID:                 p.FID,
		Nickname:            p.Nickname,
		KID:                 p.KID,
		StoveLv:             p.StoveLv,
		StoveLvContent:      p.StoveLvContent,
		AvatarImage:         p.AvatarImage,
		TotalRechargeAmount: p.TotalRechargeAmount,
	}
}
