package redeem

import (
	"fmt"
	"os"
	"strconv"

	"giftcode/internal/gameapi"

	"github.com/segmentio/encoding/json"
)

type Verdict int

const (
	RetryableUnknown Verdict = iota
	Success
	AlreadyClaimed
	Expired
	Invalid
	SignError
	CaptchaError
	FatalUnknown
)

var verdictNames = map[Verdict]string{
	RetryableUnknown: "RetryableUnknown",
	Success:          "Success",
	AlreadyClaimed:   "AlreadyClaimed",
	Expired:          "Expired",
	Invalid:          "Invalid",
	SignError:        "SignError",
	CaptchaError:     "CaptchaError",
	FatalUnknown:     "FatalUnknown",
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return "Verdict(" + strconv.Itoa(int(v)) + ")"
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Win reports whether the player now owns the reward.
func (v Verdict) Win() bool {
	return v == Success || v == AlreadyClaimed
}

// CodeFailure reports whether the code itself can never be redeemed again.
func (v Verdict) CodeFailure() bool {
	return v == Expired || v == Invalid
}

func (v Verdict) Retryable() bool {
	return v == SignError || v == CaptchaError || v == RetryableUnknown
}

func (v Verdict) Terminal() bool {
	return !v.Retryable()
}

// CodeEntry describes how one remote err_code is handled.
type CodeEntry struct {
	Message      string `json:"message"`
	CaptchaError bool   `json:"captcha_error"`
	Success      bool   `json:"success"`
	Expired      bool   `json:"expired"`
	Claimed      bool   `json:"claimed,omitempty"`
	Invalid      bool   `json:"invalid,omitempty"`
	Fatal        bool   `json:"fatal,omitempty"`
	Relogin      bool   `json:"relogin,omitempty"`
}

// CodeTable maps err_code to its entry. The "default" key covers codes missing from the table.
type CodeTable map[string]CodeEntry

const defaultCodeKey = "default"

func DefaultCodeTable() CodeTable {
	return CodeTable{
		"20000":        {Message: "Redeemed successfully.", Success: true},
		"40008":        {Message: "Already claimed.", Success: true, Claimed: true},
		"40011":        {Message: "Same type exchange, already claimed.", Success: true, Claimed: true},
		"40007":        {Message: "Gift code expired.", Expired: true},
		"40005":        {Message: "Claim limit reached.", Expired: true},
		"40014":        {Message: "Gift code does not exist.", Expired: true, Invalid: true},
		"40101":        {Message: "Captcha check failed.", CaptchaError: true},
		"40102":        {Message: "Captcha check too frequent.", CaptchaError: true},
		"40103":        {Message: "Captcha expired.", CaptchaError: true},
		"40004":        {Message: "Timeout retry."},
		"40009":        {Message: "Not logged in.", Relogin: true},
		defaultCodeKey: {Message: "Unknown error."},
	}
}

// LoadCodeTable reads a JSON code table from path. An empty path yields the built-in table.
func LoadCodeTable(path string) (CodeTable, error) {
	if path == "" {
		return DefaultCodeTable(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read code table: %w", err)
	}
	var table CodeTable
	if err := json.Unmarshal(b, &table); err != nil {
		return nil, fmt.Errorf("decode code table: %w", err)
	}
	if _, ok := table[defaultCodeKey]; !ok {
		table[defaultCodeKey] = DefaultCodeTable()[defaultCodeKey]
	}
	return table, nil
}

type Outcome struct {
	Verdict Verdict `json:"verdict"`
	Code    int     `json:"err_code"`
	Message string  `json:"message"`
	// Relogin asks the executor to drop the cached login before the next attempt.
	Relogin bool `json:"relogin,omitempty"`
}

type Classifier struct {
	table CodeTable
}

func NewClassifier(table CodeTable) *Classifier {
	if table == nil {
		table = DefaultCodeTable()
	}
	return &Classifier{table: table}
}

// Classify maps a redeem response to an outcome. A nil response is a transport failure.
func (c *Classifier) Classify(resp *gameapi.RedeemResponse) Outcome {
	if resp == nil {
		return Outcome{Verdict: RetryableUnknown, Message: "no response"}
	}
	if resp.Msg == "Sign Error" {
		return Outcome{Verdict: SignError, Code: resp.ErrCode, Message: resp.Msg}
	}
	if !resp.ErrCodeMissing && resp.ErrCode == 0 {
		return Outcome{Verdict: Success, Message: resp.Msg}
	}

	entry, ok := c.table[strconv.Itoa(resp.ErrCode)]
	if resp.ErrCodeMissing || !ok {
		entry = c.table[defaultCodeKey]
	}
	out := Outcome{Code: resp.ErrCode, Message: entry.Message, Relogin: entry.Relogin}

	switch {
	case entry.CaptchaError:
		out.Verdict = CaptchaError
	case entry.Success && entry.Claimed:
		out.Verdict = AlreadyClaimed
	case entry.Success:
		out.Verdict = Success
	case entry.Expired && entry.Invalid:
		out.Verdict = Invalid
	case entry.Expired:
		out.Verdict = Expired
	case entry.Fatal:
		out.Verdict = FatalUnknown
	default:
		out.Verdict = RetryableUnknown
	}
	return out
}
