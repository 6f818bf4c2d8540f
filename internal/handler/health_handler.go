package handler

import (
	"net/http"

	"cartsync/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 通知の件数（Hubが満たす）
type HubMetrics interface {
	Metrics() (published, delivered uint64)
}

type HealthHandler struct {
	tabs *usecase.TabRegistry
	hub  HubMetrics
}

// DI
func NewHealthHandler(tabs *usecase.TabRegistry, hub HubMetrics) *HealthHandler {
	return &HealthHandler{tabs: tabs, hub: hub}
}

type HealthResponse struct {
	Status    string `json:"status"`
	OpenTabs  int    `json:"open_tabs"`
	Published uint64 `json:"published"`
	Delivered uint64 `json:"delivered"`
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)
}

func (h *HealthHandler) health(c echo.Context) error {
	pub, del := h.hub.Metrics()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		OpenTabs:  h.tabs.Count(),
		Published: pub,
		Delivered: del,
	})
}
