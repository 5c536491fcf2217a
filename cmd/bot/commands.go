package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"giftcode/internal/jobs"
	"giftcode/internal/redeem"
	"giftcode/internal/services"

	tele "gopkg.in/telebot.v3"
)

func sendHTML(c tele.Context, text string) error {
	return c.Send(text, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func sendError(c tele.Context, err error) error {
	return c.Send(fmt.Sprintf("error %s", err.Error()))
}

func replyTaskStarted(c tele.Context, rec jobs.Record, err error) error {
	if errors.Is(err, redeem.ErrJobInFlight) {
		return sendHTML(c, fmt.Sprintf("A task is already in progress: <code>%s</code>", html.EscapeString(rec.ID)))
	}
	if err != nil {
		return sendError(c, err)
	}
	return sendHTML(c, fmt.Sprintf("Task started: <code>%s</code>", html.EscapeString(rec.ID)))
}

func commandRun(c tele.Context) error {
	if !AuthRequire(c, chatId) {
		return nil
	}

	serviceRedeem, err := invokeService[*services.ServiceRedeem](c)
	if err != nil {
		return sendError(c, err)
	}

	var n any
	if args := c.Args(); len(args) > 0 {
		n = args[0]
	}
	rec, err := serviceRedeem.StartAll(context.Background(), n)
	return replyTaskStarted(c, rec, err)
}

func commandExpired(c tele.Context) error {
	if !AuthRequire(c, chatId) {
		return nil
	}

	serviceRedeem, err := invokeService[*services.ServiceRedeem](c)
	if err != nil {
		return sendError(c, err)
	}

	rec, err := serviceRedeem.StartExpiryCheck(context.Background())
	return replyTaskStarted(c, rec, err)
}

func commandRedeem(c tele.Context) error {
	if !AuthRequire(c, chatId) {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Send("Please enter the player id!")
	}

	serviceRedeem, err := invokeService[*services.ServiceRedeem](c)
	if err != nil {
		return sendError(c, err)
	}

	rec, err := serviceRedeem.StartForPlayer(context.Background(), args[0])
	return replyTaskStarted(c, rec, err)
}

func commandStatus(c tele.Context) error {
	if !AuthRequire(c, chatId) {
		return nil
	}

	serviceRedeem, err := invokeService[*services.ServiceRedeem](c)
	if err != nil {
		return sendError(c, err)
	}

	id := ""
	if args := c.Args(); len(args) > 0 {
		id = args[0]
	} else if inFlight, ok := serviceRedeem.InFlight(); ok {
		id = inFlight
	}
	if id == "" {
		return c.Send("No task in progress.")
	}

	rec, ok := serviceRedeem.Status(id)
	if !ok {
		return c.Send("Task not found.")
	}

	text := services.FormatJobSummary(rec)
	if rec.Status == jobs.StatusProcessing {
		text += fmt.Sprintf("progress: %d%%\n", rec.Progress)
	}
	return sendHTML(c, text)
}

func commandPlayers(c tele.Context) error {
	if !AuthRequire(c, chatId) {
		return nil
	}

	servicePlayer, err := invokeService[*services.ServicePlayer](c)
	if err != nil {
		return sendError(c, err)
	}

	players, err := servicePlayer.List(context.Background())
	if err != nil {
		return sendError(c, err)
	}
	if len(players) == 0 {
		return c.Send("No subscribed players.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%d players</b>\n", len(players))
	for _, player := range players {
		fmt.Fprintf(&sb, "<code>%s</code> %s (state %d, furnace %d)\n",
			html.EscapeString(player.FID), html.EscapeString(player.Nickname), player.KID, player.StoveLv)
	}
	return sendHTML(c, sb.String())
}

func commandAddPlayer(c tele.Context) error {
	if !AuthRequire(c, chatId) {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Send("Please enter the player id!")
	}

	servicePlayer, err := invokeService[*services.ServicePlayer](c)
	if err != nil {
		return sendError(c, err)
	}

	res, err := servicePlayer.Create(context.Background(), args[0])
	if err != nil {
		return sendError(c, err)
	}
	return c.Send(fmt.Sprintf("%s\nbackup: %s", res.Message, res.Backup))
}

func commandRemovePlayer(c tele.Context) error {
	if !AuthRequire(c, chatId) {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Send("Please enter the player id!")
	}

	servicePlayer, err := invokeService[*services.ServicePlayer](c)
	if err != nil {
		return sendError(c, err)
	}

	res, err := servicePlayer.Remove(context.Background(), args[0])
	if err != nil {
		return sendError(c, err)
	}
	return c.Send(fmt.Sprintf("%s\nbackup: %s", res.Message, res.Backup))
}

func commandCodes(c tele.Context) error {
	if !AuthRequire(c, chatId) {
		return nil
	}

	serviceGiftCode, err := invokeService[*services.ServiceGiftCode](c)
	if err != nil {
		return sendError(c, err)
	}

	giftCodes, err := serviceGiftCode.List(context.Background())
	if err != nil {
		return sendError(c, err)
	}
	if len(giftCodes) == 0 {
		return c.Send("No gift codes.")
	}

	var sb strings.Builder
	for _, giftCode := range giftCodes {
		fmt.Fprintf(&sb, "<code>%s</code> %s\n", html.EscapeString(giftCode.Code), giftCode.Status)
	}
	return sendHTML(c, sb.String())
}

func commandFetch(c tele.Context) error {
	if !AuthRequire(c, chatId) {
		return nil
	}

	serviceGiftCode, err := invokeService[*services.ServiceGiftCode](c)
	if err != nil {
		return sendError(c, err)
	}

	res, err := serviceGiftCode.Fetch(context.Background())
	if err != nil {
		return sendError(c, err)
	}
	if len(res.NewCodes) == 0 {
		return c.Send("No new gift codes.")
	}
	return sendHTML(c, fmt.Sprintf("New gift codes: <code>%s</code>", html.EscapeString(strings.Join(res.NewCodes, ", "))))
}

func commandDeactivate(c tele.Context) error {
	if !AuthRequire(c, chatId) {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Send("Please enter the gift code!")
	}

	serviceGiftCode, err := invokeService[*services.ServiceGiftCode](c)
	if err != nil {
		return sendError(c, err)
	}

	res, err := serviceGiftCode.Deactivate(context.Background(), args[0])
	if err != nil {
		return sendError(c, err)
	}
	return c.Send(fmt.Sprintf("%s\nbackup: %s", res.Message, res.Backup))
}
