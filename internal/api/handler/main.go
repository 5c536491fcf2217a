package handler

import (
	"net/http"

	"giftcode/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/do"
)

type Config struct {
	Container *do.Injector
	Mode      string
	Origins   []string
	APIKey    string
}

func New(cfg *Config) (http.Handler, error) {
	r := echo.New()
	r.Pre(middleware.RemoveTrailingSlash())
	if cfg.Mode == "debug" {
		r.Debug = true
		pprof.Register(r)
	}

	r.JSONSerializer = httpx.SegmentJSONSerializer{}
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339}\t${method}\t${uri}\t${status}\t${latency_human}\n",
	}))
	r.Use(middleware.Recover())

	readiness, err := do.Invoke[*services.Readiness](cfg.Container)
	if err != nil {
		return nil, err
	}

	h := groupHealth{readiness}
	r.GET("", h.Root)
	r.GET("/health", h.Health)
	r.GET("/healthz", h.Healthz)

	routesAPIv1 := r.Group("/api/v1")
	{
		cors := middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Origins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, headerAPIKey},
			MaxAge:       60 * 60,
		})

		routesAPIv1.Use(cors)
		routesAPIv1.Use(AuthnAPIKey(cfg.APIKey))

		routesAPIv1Task := routesAPIv1.Group("/tasks")
		{
			t := groupTask{cfg.Container}
			routesAPIv1Task.POST("/automate-all", t.AutomateAll)
			routesAPIv1Task.POST("/expired-check", t.ExpiredCheck)
			routesAPIv1Task.GET("/inprogress", t.InProgress)
			routesAPIv1Task.POST("/reset", t.Reset)
			routesAPIv1Task.GET("/:id", t.Show)
		}

		routesAPIv1Player := routesAPIv1.Group("/players")
		{
			routesAPIv1Player.Use(RequireReady(readiness))
			p := groupPlayer{cfg.Container}
			routesAPIv1Player.GET("", p.List)
			routesAPIv1Player.POST("/create", p.Create)
			routesAPIv1Player.POST("/update", p.Update)
			routesAPIv1Player.POST("/remove", p.Remove)
			routesAPIv1Player.POST("/redeem", p.Redeem)
			routesAPIv1Player.GET("/:player_id/redemptions", p.Redemptions)
		}

		g := groupGiftCode{cfg.Container}
		routesAPIv1.GET("/giftcodes", g.List)
		routesAPIv1.POST("/giftcodes/fetch", g.Fetch)
		routesAPIv1.POST("/giftcodes/deactivate", g.Deactivate)
	}

	return r, nil
}
