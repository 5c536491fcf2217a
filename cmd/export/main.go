package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"giftcode/internal/app"
	"giftcode/internal/datastore"

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
		Name: "export",
		Commands: []*cli.Command{
			commandExport(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandExport() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "print a redemption report per subscribed player",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 100,
				Usage: "players read per page",
			},
			&cli.IntFlag{
				Name:  "top",
				Value: 5,
				Usage: "players listed in the most missing codes summary",
			},
		},
		Action: func(c *cli.Context) error {
			vs, err := env.EnvsRequired(app.RequiredEnvs...)
			if err != nil {
				return err
			}

			db, err := do.Invoke[*bun.DB](app.NewContainer(vs))
			if err != nil {
				return err
			}

			ctx := context.Background()
			activeCodes, err := datastore.GetActiveGiftCodes(ctx, db)
			if err != nil {
				return err
			}
			active := make(map[string]bool, len(activeCodes))
			for _, code := range activeCodes {
				active[code] = true
			}

			limit := c.Int("limit")
			offset := 0
			var missing []playerMissing

			fmt.Printf("ACTIVE GIFT CODES: %d\n", len(activeCodes))
			for {
				players, err := datastore.GetPlayersSortedBySubscribedDate(ctx, db, limit, offset)
				offset += limit
				if err != nil {
					return err
				}
				if len(players) == 0 {
					break
				}

				for _, player := range players {
					redeemed, err := datastore.GetRedeemedCodes(ctx, db, player.FID)
					if err != nil {
						fmt.Println(player.FID, err)
						continue
					}

					redeemedActive := 0
					for _, code := range redeemed {
						if active[code] {
							redeemedActive++
						}
					}

					fmt.Printf("%s (%s): redeemed %d, missing %d\n",
						player.FID, player.Nickname, len(redeemed), len(activeCodes)-redeemedActive)
					missing = append(missing, playerMissing{player.FID, len(activeCodes) - redeemedActive})
				}
			}

			fmt.Printf("MOST MISSING CODES - TOP %d:\n", c.Int("top"))
			for _, m := range topMissing(missing, c.Int("top")) {
				fmt.Printf("Player: %s, Missing: %d\n", m.fid, m.missing)
			}
			return nil
		},
	}
}

type playerMissing struct {
	fid     string
	missing int
}

func topMissing(all []playerMissing, n int) []playerMissing {
	sorted := append([]playerMissing(nil), all...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].missing > sorted[j].missing
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
