package handler

import (
	"net/http"

	"giftcode/internal/services"

	"github.com/labstack/echo/v4"
)

type groupHealth struct {
	readiness *services.Readiness
}

func (gr *groupHealth) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to the Gift Code Redemption API!"})
}

func (gr *groupHealth) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (gr *groupHealth) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ready": gr.readiness.Ready()})
}
