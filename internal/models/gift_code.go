package models

import (
	"time"

	"github.com/uptrace/bun"
)

type GiftCodeStatus string

const (
	GiftCodeActive   GiftCodeStatus = "Active"
	GiftCodeInactive GiftCodeStatus = "Inactive"
)

type GiftCode struct {
	bun.BaseModel `bun:"table:giftcodes"`
	ID            int64          `bun:"id,pk,autoincrement" json:"id"`
	Code          string         `bun:"code,unique,notnull" json:"code"`
	CreatedDate   time.Time      `bun:"created_date" json:"created_date"`
	Status        GiftCodeStatus `bun:"status,notnull" json:"status"`
	LastChecked   time.Time      `bun:"last_checked" json:"last_checked"`
}
