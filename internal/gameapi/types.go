package gameapi

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"giftcode/internal/models"

	"github.com/segmentio/encoding/json"
)

// Int decodes a JSON number, a numeric string or an empty string (zero).
type Int int64

func (i *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*i = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*i = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// non numeric strings carry no code
			*i = 0
			return nil
		}
		*i = Int(n)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	v, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return err
		}
		v = int64(f)
	}
	*i = Int(v)
	return nil
}

// OptInt is an Int that remembers whether a numeric value was present. Missing, null, empty and
// non numeric values leave Valid false.
type OptInt struct {
	Value Int
	Valid bool
}

func (o *OptInt) UnmarshalJSON(b []byte) error {
	*o = OptInt{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil
		}
		*o = OptInt{Value: Int(n), Valid: true}
		return nil
	}

	var v Int
	if err := v.UnmarshalJSON(b); err != nil {
		return err
	}
	*o = OptInt{Value: v, Valid: true}
	return nil
}

func (o OptInt) LogValue() slog.Value {
	if !o.Valid {
		return slog.StringValue("")
	}
	return slog.Int64Value(int64(o.Value))
}

// String decodes a JSON string or number into its textual form.
type String string

func (s *String) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = String(v)
		return nil
	}
	*s = String(b)
	return nil
}

type envelope struct {
	Code    Int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Msg     string          `json:"msg"`
	ErrCode OptInt          `json:"err_code"`
}

type loginData struct {
	FID                 String `json:"fid"`
	Nickname            string `json:"nickname"`
	KID                 Int    `json:"kid"`
	StoveLv             Int    `json:"stove_lv"`
	StoveLvContent      Int    `json:"stove_lv_content"`
	AvatarImage         string `json:"avatar_image"`
	TotalRechargeAmount Int    `json:"total_recharge_amount"`
}

func (d *loginData) profile(fid string) models.PlayerProfile {
	if d.FID != "" {
		fid = string(d.FID)
	}
	return models.PlayerProfile{
		FID:                 fid,
		Nickname:            d.Nickname,
		KID:                 int(d.KID),
		StoveLv:             int(d.StoveLv),
		StoveLvContent:      int(d.StoveLvContent),
		AvatarImage:         d.AvatarImage,
		TotalRechargeAmount: int64(d.TotalRechargeAmount),
	}
}

// Token is the signed request template established by a successful login.
type Token struct {
	FID     string
	Time    int64
	Sign    string
	Profile models.PlayerProfile
}

func (t *Token) params() map[string]string {
	return map[string]string{
		"fid":  t.FID,
		"time": strconv.FormatInt(t.Time, 10),
		"sign": t.Sign,
	}
}

type CaptchaChallenge struct {
	// Image is the challenge as returned by the game, usually a base64 data URI.
	Image string `json:"img"`
}

var ErrEmptyImage = errors.New("empty captcha image")

// Bytes decodes the challenge image.
func (c *CaptchaChallenge) Bytes() ([]byte, error) {
	data := c.Image
	if i := strings.Index(data, ","); strings.HasPrefix(data, "data:") && i >= 0 {
		data = data[i+1:]
	}
	if data == "" {
		return nil, ErrEmptyImage
	}
	return base64.StdEncoding.DecodeString(data)
}

type RedeemResponse struct {
	Code    int
	Msg     string
	ErrCode int
	// ErrCodeMissing is set when the body carried no numeric err_code.
	ErrCodeMissing bool
	Data           json.RawMessage
}
