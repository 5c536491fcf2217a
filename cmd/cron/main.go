package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"giftcode/internal/app"
	"giftcode/internal/datastore"
	"giftcode/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/env"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/samber/do"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

type CronJob interface {
	Start(cronRunner *cron.Cron) error
}

func main() {
	cliApp := &cli.App{
		Name: "cronjob",
		Commands: []*cli.Command{
			commandCronjob(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandCronjob() *cli.Command {
	return &cli.Command{
		Name: "cron",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "now",
				Usage: "run one batch immediately before waiting for the schedule",
			},
		},
		Action: func(c *cli.Context) error {
			vs, err := env.EnvsRequired(app.RequiredEnvs...)
			if err != nil {
				return err
			}
			container := app.NewContainer(vs)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := do.Invoke[*bun.DB](container)
			if err != nil {
				return err
			}
			if err := datastore.Migrate(ctx, db); err != nil {
				return err
			}

			serviceRedeem, err := do.Invoke[*services.ServiceRedeem](container)
			if err != nil {
				return err
			}

			cronRunner := cron.New()
			jobs := []CronJob{
				NewRedeemJob(serviceRedeem, vs[services.CONFIG_REDEEM_CRON]),
			}
			for _, job := range jobs {
				if err := job.Start(cronRunner); err != nil {
					return err
				}
			}

			if c.Bool("now") {
				jobs[0].(*RedeemJob).runScheduledTask()
			}

			log.Println("Start cronjob")
			cronRunner.Start()
			<-ctx.Done()

			<-cronRunner.Stop().Done()
			if err := serviceRedeem.Shutdown(context.Background()); err != nil {
				log.Println("shutdown: running task was interrupted:", err)
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		},
	}
}
