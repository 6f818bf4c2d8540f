package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cartsync/internal/handler"
	"cartsync/internal/middleware"

	"github.com/labstack/echo/v4"
)

// サーバーが使う部品
type Deps struct {
	Log     *slog.Logger
	Tokens  *middleware.OriginTokens
	Origins *handler.OriginHandler
	Carts   *handler.CartHandler
	Health  *handler.HealthHandler
}

// New はルートを登録したechoを返す（テストでもそのまま使う）
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLog(d.Log))
	RegisterRoutes(e, d)
	return e
}

// Start はctxが終わるまで動き、終わったらgracefulに止める。
func Start(ctx context.Context, e *echo.Echo, addr string, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http_listen", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
