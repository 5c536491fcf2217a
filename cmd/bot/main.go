package main

import (
	"log"
	"os"
	"time"

	"giftcode/internal/app"
	"giftcode/internal/datastore"
	"giftcode/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/env"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
	tele "gopkg.in/telebot.v3"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

var chatId []int64

const contextContainer = "context-container"

func main() {
	cliApp := &cli.App{
		Name: "bot-telegram",
		Commands: []*cli.Command{
			commandBot(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandBot() *cli.Command {
	return &cli.Command{
		Name:   "server",
		Action: action,
	}
}

func action(c *cli.Context) error {
	vs, err := env.EnvsRequired(append(app.RequiredEnvs, services.CONFIG_TELEGRAM_BOT_TOKEN, services.CONFIG_TELEGRAM_ADMIN_CHAT_ID)...)
	if err != nil {
		return err
	}

	chatId, err = services.ParseChatIDs(vs[services.CONFIG_TELEGRAM_ADMIN_CHAT_ID])
	if err != nil {
		return err
	}

	container := app.NewContainer(vs)

	db, err := do.Invoke[*bun.DB](container)
	if err != nil {
		return err
	}
	if err := datastore.Migrate(c.Context, db); err != nil {
		return err
	}

	pref := tele.Settings{
		Token:  vs[services.CONFIG_TELEGRAM_BOT_TOKEN],
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return err
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Callback() != nil {
				defer c.Respond()
			}

			c.Set(contextContainer, container)
			return next(c)
		}
	})

	b.Handle("/start", commandStart)
	b.Handle("/help", commandStart)

	b.Handle("/run", commandRun)
	b.Handle("/expired", commandExpired)
	b.Handle("/redeem", commandRedeem)
	b.Handle("/status", commandStatus)

	b.Handle("/players", commandPlayers)
	b.Handle("/add", commandAddPlayer)
	b.Handle("/remove", commandRemovePlayer)
	b.Handle("/codes", commandCodes)
	b.Handle("/fetch", commandFetch)
	b.Handle("/deactivate", commandDeactivate)

	log.Println("Bot started")
	b.Start()
	return nil
}

func AuthRequire(ctx tele.Context, chatId []int64) bool {
	authorized := false
	for _, id := range chatId {
		if ctx.Chat() != nil && ctx.Chat().ID == id {
			authorized = true
			break
		}
	}

	if !authorized {
		//nolint:errcheck
		ctx.Send("You are not authorized to use this bot here.")
	}

	return authorized
}
