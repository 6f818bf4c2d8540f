package handler

import (
	"net/http"

	"cartsync/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /origins のHTTP
type OriginHandler struct {
	uc *usecase.OriginUsecase
}

// DI
func NewOriginHandler(uc *usecase.OriginUsecase) *OriginHandler {
	return &OriginHandler{uc: uc}
}

func (h *OriginHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/origins", h.issue)
}

func (h *OriginHandler) issue(c echo.Context) error {
	out, err := h.uc.Issue(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
