package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"giftcode/internal/app"
	"giftcode/internal/datastore"
	"giftcode/internal/services"
	"giftcode/internal/staging"

	"github.com/hiendaovinh/toolkit/pkg/env"
	"github.com/joho/godotenv"
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

func main() {
	cliApp := &cli.App{
		Name: "migrate",
		Commands: []*cli.Command{
			commandMigration(),
			commandAddPlayer(),
			commandSync(),
			commandBackup(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func getContainer() *do.Injector {
	vs, err := env.EnvsRequired(app.RequiredEnvs...)
	if err != nil {
		log.Fatal(err)
	}
	return app.NewContainer(vs)
}

func commandMigration() *cli.Command {
	return &cli.Command{
		Name: "migrate",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := do.Invoke[*bun.DB](getContainer())
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.Migrate(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			log.Println("Tables created")
			return nil
		},
	}
}

func commandAddPlayer() *cli.Command {
	return &cli.Command{
		Name:      "add-player",
		Usage:     "log a player in and subscribe it",
		ArgsUsage: "<player_id>...",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			container := getContainer()

			db, err := do.Invoke[*bun.DB](container)
			if err != nil {
				log.Fatal(err)
			}
			if err := datastore.Migrate(ctx, db); err != nil {
				log.Fatal(err)
			}

			servicePlayer, err := do.Invoke[*services.ServicePlayer](container)
			if err != nil {
				log.Fatal(err)
			}

			for _, fid := range c.Args().Slice() {
				res, err := servicePlayer.Create(ctx, fid)
				if err != nil {
					log.Println(fid, err)
					continue
				}
				log.Println(res.Message, "backup:", res.Backup)
			}
			return nil
		},
	}
}

func commandSync() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "restore the sqlite database from the rclone backup",
		Action: func(c *cli.Context) error {
			container := getContainer()
			vs := do.MustInvokeNamed[map[string]string](container, "envs")
			rclone := do.MustInvoke[*services.Rclone](container)
			if !rclone.Enabled() {
				log.Fatal("RCLONE_REMOTE is not set or the database is not sqlite")
			}

			if err := rclone.Sync(c.Context, filepath.Dir(vs[services.CONFIG_DB_FILE])); err != nil {
				log.Fatal(err)
			}
			log.Println("Database synced")
			return nil
		},
	}
}

func commandBackup() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "flush staged results and upload the sqlite database",
		Action: func(c *cli.Context) error {
			container := getContainer()
			db, err := do.Invoke[*bun.DB](container)
			if err != nil {
				log.Fatal(err)
			}
			if err := datastore.Migrate(c.Context, db); err != nil {
				log.Fatal(err)
			}

			flusher := do.MustInvoke[*staging.Flusher](container)
			if err := flusher.Flush(c.Context); err != nil {
				log.Fatal(err)
			}

			rclone := do.MustInvoke[*services.Rclone](container)
			if err := rclone.Backup(c.Context); err != nil {
				log.Fatal(err)
			}
			log.Println("Database backed up")
			return nil
		},
	}
}
