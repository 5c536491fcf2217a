package handler

import (
	"crypto/subtle"
	"errors"

	"giftcode/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
)

const headerAPIKey = "X-Api-Key"

// AuthnAPIKey rejects requests without the configured key. An empty key leaves the routes open.
func AuthnAPIKey(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return next(c)
			}

			header := c.Request().Header.Get(headerAPIKey)
			if header == "" || subtle.ConstantTimeCompare([]byte(header), []byte(apiKey)) != 1 {
				//nolint:errcheck
				httpx.Abort(c, errorx.Wrap(errors.New("unauthorized"), errorx.Authn), -1)
				return nil
			}

			return next(c)
		}
	}
}

// RequireReady holds requests back until start up registration is done.
func RequireReady(readiness *services.Readiness) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !readiness.Ready() {
				//nolint:errcheck
				httpx.Abort(c, errorx.Wrap(errors.New("service is starting up"), errorx.Service), -1)
				return nil
			}
			return next(c)
		}
	}
}
