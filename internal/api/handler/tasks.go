package handler

import (
	"errors"
	"net/http"

	"giftcode/internal/jobs"
	"giftcode/internal/redeem"
	"giftcode/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupTask struct {
	container *do.Injector
}

type automatePayload struct {
	N any `json:"n"`
}

type taskStarted struct {
	TaskID   string      `json:"task_id"`
	Status   jobs.Status `json:"status"`
	Progress int         `json:"progress"`
}

type taskConflict struct {
	Error  string `json:"error"`
	TaskID string `json:"task_id"`
}

type taskNotFound struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

type taskInProgress struct {
	Result bool   `json:"result"`
	TaskID string `json:"task_id,omitempty"`
}

func taskStartResponse(c echo.Context, rec jobs.Record, err error) error {
	if errors.Is(err, redeem.ErrJobInFlight) {
		return c.JSON(http.StatusConflict, taskConflict{Error: "A task is already in progress.", TaskID: rec.ID})
	}
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}
	return httpx.RestAbort(c, taskStarted{TaskID: rec.ID, Status: rec.Status, Progress: rec.Progress}, nil)
}

func (gr *groupTask) AutomateAll(c echo.Context) error {
	serviceRedeem, err := do.Invoke[*services.ServiceRedeem](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	var payload automatePayload
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	rec, err := serviceRedeem.StartAll(c.Request().Context(), payload.N)
	return taskStartResponse(c, rec, err)
}

func (gr *groupTask) ExpiredCheck(c echo.Context) error {
	serviceRedeem, err := do.Invoke[*services.ServiceRedeem](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	rec, err := serviceRedeem.StartExpiryCheck(c.Request().Context())
	return taskStartResponse(c, rec, err)
}

func (gr *groupTask) InProgress(c echo.Context) error {
	serviceRedeem, err := do.Invoke[*services.ServiceRedeem](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	id, ok := serviceRedeem.InFlight()
	return httpx.RestAbort(c, taskInProgress{Result: ok, TaskID: id}, nil)
}

func (gr *groupTask) Show(c echo.Context) error {
	serviceRedeem, err := do.Invoke[*services.ServiceRedeem](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	rec, ok := serviceRedeem.Status(c.Param("id"))
	if !ok {
		return httpx.RestAbort(c, taskNotFound{Status: "Not Found"}, nil)
	}
	return httpx.RestAbort(c, rec, nil)
}

func (gr *groupTask) Reset(c echo.Context) error {
	serviceRedeem, err := do.Invoke[*services.ServiceRedeem](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	serviceRedeem.Reset()
	return httpx.RestAbort(c, map[string]string{"status": "cleared"}, nil)
}
