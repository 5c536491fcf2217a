package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"giftcode/internal/api/handler"
	"giftcode/internal/app"
	"giftcode/internal/datastore"
	"giftcode/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/env"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
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
	vs, err := env.EnvsRequired(app.RequiredEnvs...)
	if err != nil {
		log.Fatal(err)
	}

	container := app.NewContainer(vs)

	cliApp := &cli.App{
		Name: "api",
		Commands: []*cli.Command{
			commandServer(container),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandServer(container *do.Injector) *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "start the web server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "0.0.0.0:8080",
				Usage: "serve address",
			},
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "restore the sqlite database from the rclone backup before starting",
			},
		},
		Action: func(c *cli.Context) error {
			vs := do.MustInvokeNamed[map[string]string](container, "envs")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if c.Bool("sync") {
				rclone := do.MustInvoke[*services.Rclone](container)
				if err := rclone.Sync(ctx, filepath.Dir(vs[services.CONFIG_DB_FILE])); err != nil {
					log.Println("sync database:", err)
				}
			}

			db, err := do.Invoke[*bun.DB](container)
			if err != nil {
				return err
			}
			if err := datastore.Migrate(ctx, db); err != nil {
				return err
			}

			router, err := handler.New(&handler.Config{
				Container: container,
				Mode:      vs[services.CONFIG_API_MODE],
				Origins:   strings.Split(vs[services.CONFIG_API_ORIGINS], ","),
				APIKey:    vs[services.CONFIG_API_KEY],
			})
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:    c.String("addr"),
				Handler: router,
			}

			errWg, errCtx := errgroup.WithContext(ctx)

			errWg.Go(func() error {
				startup(errCtx, container, vs[services.CONFIG_DEFAULT_PLAYER])
				return nil
			})

			errWg.Go(func() error {
				log.Printf("ListenAndServe: %s (%s)\n", c.String("addr"), vs[services.CONFIG_API_MODE])
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})

			errWg.Go(func() error {
				<-errCtx.Done()
				err := srv.Shutdown(context.TODO())

				serviceRedeem, ierr := do.Invoke[*services.ServiceRedeem](container)
				if ierr != nil {
					log.Println("shutdown:", ierr)
					return err
				}
				if werr := serviceRedeem.Shutdown(context.Background()); werr != nil {
					log.Println("shutdown: running task was interrupted:", werr)
				}
				return err
			})

			return errWg.Wait()
		},
	}
}

// startup subscribes the default player, then opens the player routes.
func startup(ctx context.Context, container *do.Injector, defaultPlayer string) {
	readiness := do.MustInvoke[*services.Readiness](container)
	defer readiness.SetReady()

	if defaultPlayer == "" {
		return
	}

	servicePlayer, err := do.Invoke[*services.ServicePlayer](container)
	if err != nil {
		log.Println("startup:", err)
		return
	}
	if err := servicePlayer.Register(ctx, defaultPlayer); err != nil {
		log.Printf("startup: register default player %s: %v\n", defaultPlayer, err)
		return
	}
	log.Printf("startup: default player %s registered\n", defaultPlayer)
}
