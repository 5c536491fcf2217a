package handler

import (
	"giftcode/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupGiftCode struct {
	container *do.Injector
}

type giftCodePayload struct {
	Code string `json:"code"`
}

func (gr *groupGiftCode) List(c echo.Context) error {
	serviceGiftCode, err := do.Invoke[*services.ServiceGiftCode](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	giftCodes, err := serviceGiftCode.List(c.Request().Context())
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	return httpx.RestAbort(c, map[string]any{"giftcodes": giftCodes}, nil)
}

func (gr *groupGiftCode) Fetch(c echo.Context) error {
	serviceGiftCode, err := do.Invoke[*services.ServiceGiftCode](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	res, err := serviceGiftCode.Fetch(c.Request().Context())
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	return httpx.RestAbort(c, res, nil)
}

func (gr *groupGiftCode) Deactivate(c echo.Context) error {
	serviceGiftCode, err := do.Invoke[*services.ServiceGiftCode](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	var payload giftCodePayload
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	res, err := serviceGiftCode.Deactivate(c.Request().Context(), payload.Code)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	return httpx.RestAbort(c, res, nil)
}
