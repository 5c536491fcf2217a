// Package staging keeps provisional redemption results in an append-only log until they are replayed into
// durable storage. Entries are deduplicated on append so replaying a log twice is harmless.
package staging

import (
	"context"
	"fmt"

	"giftcode/internal/models"
)

type Kind string

const (
	KindDeactivation    Kind = "expired_giftcode"
	KindRedemption      Kind = "redeemed_giftcode"
	KindCaptchaFeedback Kind = "success_captcha"
	KindPlayerProfile   Kind = "players"
)

// Kinds lists every entry kind in replay order.
var Kinds = []Kind{KindDeactivation, KindRedemption, KindCaptchaFeedback, KindPlayerProfile}

// Applier is the durable storage a staged entry is replayed into. Every method must be idempotent.
type Applier interface {
	RecordRedemption(ctx context.Context, fid string, code string) error
	DeactivateGiftCode(ctx context.Context, code string) error
	SetCaptchaFeedback(ctx context.Context, solveID int64, success bool) error
	UpdatePlayerProfile(ctx context.Context, profile *models.PlayerProfile) error
}

type Entry interface {
	Kind() Kind
	Apply(ctx context.Context, applier Applier) error
}

type Redemption struct {
	FID  string `json:"fid" msgpack:"fid"`
	Code string `json:"code" msgpack:"code"`
}

func (Redemption) Kind() Kind { return KindRedemption }

func (e Redemption) Apply(ctx context.Context, applier Applier) error {
	return applier.RecordRedemption(ctx, e.FID, e.Code)
}

type Deactivation struct {
	Code string `json:"code" msgpack:"code"`
}

func (Deactivation) Kind() Kind { return KindDeactivation }

func (e Deactivation) Apply(ctx context.Context, applier Applier) error {
	return applier.DeactivateGiftCode(ctx, e.Code)
}

type CaptchaFeedback struct {
	SolveID int64 `json:"captcha_id" msgpack:"captcha_id"`
	Success bool  `json:"success" msgpack:"success"`
}

func (CaptchaFeedback) Kind() Kind { return KindCaptchaFeedback }

func (e CaptchaFeedback) Apply(ctx context.Context, applier Applier) error {
	return applier.SetCaptchaFeedback(ctx, e.SolveID, e.Success)
}

type PlayerProfile struct {
	Profile models.PlayerProfile `json:"profile" msgpack:"profile"`
}

func (PlayerProfile) Kind() Kind { return KindPlayerProfile }

func (e PlayerProfile) Apply(ctx context.Context, applier Applier) error {
	profile := e.Profile
	return applier.UpdatePlayerProfile(ctx, &profile)
}

func newEntry(kind Kind) (Entry, error) {
	switch kind {
	case KindRedemption:
		return &Redemption{}, nil
	case KindDeactivation:
		return &Deactivation{}, nil
	case KindCaptchaFeedback:
		return &CaptchaFeedback{}, nil
	case KindPlayerProfile:
		return &PlayerProfile{}, nil
	default:
		return nil, fmt.Errorf("unknown staging kind %q", kind)
	}
}

// Log is an append-only, deduplicated store of staged entries.
type Log interface {
	// Append reports false when an identical entry is already staged.
	Append(ctx context.Context, entry Entry) (bool, error)
	Replay(ctx context.Context, applier Applier) (int, error)
	Clear(ctx context.Context) error
	Empty(ctx context.Context) (bool, error)
}
