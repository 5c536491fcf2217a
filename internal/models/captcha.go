package models

import (
	"github.com/uptrace/bun"
)

type Captcha struct {
	bun.BaseModel `bun:"table:captchas"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name" json:"name"`
	Img           []byte `bun:"img" json:"-"`
	Feedback      bool   `bun:"feedback,notnull,default:false" json:"feedback"`
}
