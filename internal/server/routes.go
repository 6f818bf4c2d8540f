package server

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, d Deps) {
	d.Health.RegisterRoutes(e)
	d.Origins.RegisterRoutes(e)
	d.Carts.RegisterRoutes(e, d.Tokens.AuthJWT())
}
