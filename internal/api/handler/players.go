package handler

import (
	"giftcode/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupPlayer struct {
	container *do.Injector
}

type playerPayload struct {
	PlayerID string `json:"player_id"`
}

func (gr *groupPlayer) servicePlayer() (*services.ServicePlayer, error) {
	servicePlayer, err := do.Invoke[*services.ServicePlayer](gr.container)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.Service)
	}
	return servicePlayer, nil
}

func (gr *groupPlayer) List(c echo.Context) error {
	servicePlayer, err := gr.servicePlayer()
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	players, err := servicePlayer.List(c.Request().Context())
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	return httpx.RestAbort(c, map[string]any{"players": players}, nil)
}

func (gr *groupPlayer) Create(c echo.Context) error {
	servicePlayer, err := gr.servicePlayer()
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	var payload playerPayload
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	res, err := servicePlayer.Create(c.Request().Context(), payload.PlayerID)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	return httpx.RestAbort(c, res, nil)
}

func (gr *groupPlayer) Update(c echo.Context) error {
	servicePlayer, err := gr.servicePlayer()
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	var payload playerPayload
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	res, err := servicePlayer.Update(c.Request().Context(), payload.PlayerID)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	return httpx.RestAbort(c, res, nil)
}

func (gr *groupPlayer) Remove(c echo.Context) error {
	servicePlayer, err := gr.servicePlayer()
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	var payload playerPayload
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	res, err := servicePlayer.Remove(c.Request().Context(), payload.PlayerID)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	return httpx.RestAbort(c, res, nil)
}

// Redeem starts a job limited to one subscribed player.
func (gr *groupPlayer) Redeem(c echo.Context) error {
	serviceRedeem, err := do.Invoke[*services.ServiceRedeem](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	var payload playerPayload
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	rec, err := serviceRedeem.StartForPlayer(c.Request().Context(), payload.PlayerID)
	return taskStartResponse(c, rec, err)
}

func (gr *groupPlayer) Redemptions(c echo.Context) error {
	servicePlayer, err := gr.servicePlayer()
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	res, err := servicePlayer.Redemptions(c.Request().Context(), c.Param("player_id"))
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	return httpx.RestAbort(c, res, nil)
}
