package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"giftcode/internal/jobs"

	tele "gopkg.in/telebot.v3"
)

// Bot sends job summaries to the admin chats.
type Bot struct {
	token   string
	chatIDs []int64
}

func NewBot(token string, chatIDs []int64) (*Bot, error) {
	if token == "" || len(chatIDs) == 0 {
		return nil, fmt.Errorf("telegram bot token and admin chat id are required")
	}
	return &Bot{token, chatIDs}, nil
}

// ParseChatIDs reads a comma separated list of chat ids.
func ParseChatIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (bot *Bot) SendMsg(chatID int64, text string) error {
	pref := tele.Settings{
		Token:  bot.token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return err
	}

	_, err = b.Send(&tele.User{ID: chatID}, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	return err
}

func (bot *Bot) NotifyJob(ctx context.Context, rec jobs.Record) error {
	text := FormatJobSummary(rec)
	var errs []error
	for _, chatID := range bot.chatIDs {
		if err := bot.SendMsg(chatID, text); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func FormatJobSummary(rec jobs.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Task %s</b>\n", html.EscapeString(string(rec.Status)))
	fmt.Fprintf(&sb, "id: <code>%s</code>\n", html.EscapeString(rec.ID))
	if rec.Options.Player != "" {
		fmt.Fprintf(&sb, "player: <code>%s</code>\n", html.EscapeString(rec.Options.Player))
	}
	if rec.FinishedAt != nil {
		fmt.Fprintf(&sb, "took: %s\n", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Second))
	}

	res := rec.Result
	if res == nil {
		return sb.String()
	}
	if res.Message != "" {
		sb.WriteString(html.EscapeString(res.Message))
		sb.WriteString("\n")
	}
	if res.Error != "" {
		fmt.Fprintf(&sb, "error: %s\n", html.EscapeString(res.Error))
	}
	if res.Units > 0 {
		fmt.Fprintf(&sb, "units: %d/%d, redeemed %d, expired %d, abandoned %d\n",
			res.Processed, res.Units, res.Redeemed, res.Expired, res.Abandoned)
	}
	return sb.String()
}
