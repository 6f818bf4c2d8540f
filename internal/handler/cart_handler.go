package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cartsync/internal/domain/model"
	"cartsync/internal/middleware"
	"cartsync/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /tabs のHTTP（タブの画面操作）
type CartHandler struct {
	tabs *usecase.TabRegistry
}

// DI
func NewCartHandler(tabs *usecase.TabRegistry) *CartHandler {
	return &CartHandler{tabs: tabs}
}

type AddItemRequest struct {
	Title  string `json:"title"`
	Price  string `json:"price"`
	ImgSrc string `json:"img_src"`
}

// quantityはinputの値そのまま（文字列でも数値でもよい）
type SetQuantityRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}

type RemoveItemResponse struct {
	Removed bool                `json:"removed"`
	Tab     usecase.TabSnapshot `json:"tab"`
}

type OpenTabResponse struct {
	TabID string              `json:"tab_id"`
	Tab   usecase.TabSnapshot `json:"tab"`
}

// /tabs, /tabs/{id} を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	g := e.Group("/tabs")
	g.Use(auth)

	g.POST("", h.openTab)
	g.GET("/:id", h.getTab)
	g.GET("/:id/events", h.events)
	g.DELETE("/:id", h.closeTab)

	g.POST("/:id/items", h.addItem)
	g.PATCH("/:id/items/:title", h.setQuantity)
	g.DELETE("/:id/items/:title", h.removeItem)
}

func (h *CartHandler) openTab(c echo.Context) error {
	originID, ok := middleware.OriginIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	tab, err := h.tabs.Open(c.Request().Context(), originID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, OpenTabResponse{TabID: tab.ID, Tab: tab.Snapshot()})
}

func (h *CartHandler) getTab(c echo.Context) error {
	tab, err := h.ownedTab(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tab.Snapshot())
}

func (h *CartHandler) closeTab(c echo.Context) error {
	tab, err := h.ownedTab(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.tabs.Close(tab.ID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) addItem(c echo.Context) error {
	tab, err := h.ownedTab(c)
	if err != nil {
		return writeError(c, err)
	}

	var req AddItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//商品カードの表示価格（Rs.100.00）を読む
	price, err := model.ParsePrice(req.Price)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid price"})
	}

	err = tab.Cart.AddItem(c.Request().Context(), usecase.AddItemInput{
		Title:     req.Title,
		UnitPrice: price,
		ImageRef:  req.ImgSrc,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tab.Snapshot())
}

func (h *CartHandler) setQuantity(c echo.Context) error {
	tab, err := h.ownedTab(c)
	if err != nil {
		return writeError(c, err)
	}

	var req SetQuantityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	if err := tab.Cart.SetQuantity(c.Request().Context(), titleParam(c), rawQuantity(req.Quantity)); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, tab.Snapshot())
}

func (h *CartHandler) removeItem(c echo.Context) error {
	tab, err := h.ownedTab(c)
	if err != nil {
		return writeError(c, err)
	}

	//confirm=trueが「OK」を押したのと同じ
	confirmed, _ := strconv.ParseBool(c.QueryParam("confirm"))
	confirm := usecase.ConfirmFunc(func(string) bool { return confirmed })

	removed, err := tab.Cart.RemoveItem(c.Request().Context(), titleParam(c), confirm)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, RemoveItemResponse{Removed: removed, Tab: tab.Snapshot()})
}

// 描画のたびにviewをServer-Sent Eventsで流す
func (h *CartHandler) events(c echo.Context) error {
	tab, err := h.ownedTab(c)
	if err != nil {
		return writeError(c, err)
	}

	views, stop := tab.Watch()
	defer stop()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-views:
			if !ok {
				//タブが閉じた
				return nil
			}
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "event: view\ndata: %s\n\n", b); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

// 他originのタブは存在しない扱い（404）
func (h *CartHandler) ownedTab(c echo.Context) (*usecase.Tab, error) {
	originID, ok := middleware.OriginIDFromContext(c)
	if !ok {
		return nil, usecase.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	tab, err := h.tabs.Get(c.Param("id"))
	if err != nil {
		return nil, err
	}
	if tab.Origin != originID {
		return nil, usecase.ErrTabNotFound
	}
	return tab, nil
}

// titleは1セグメント。"/"を含むtitleは%2Fで送る。
// RawPathがあるときだけechoは未デコードの値を渡すので、そのときだけ戻す。
func titleParam(c echo.Context) string {
	raw := c.Param("title")
	if c.Request().URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// "3" / 3 / null / 無し をinputの文字列に戻す
func rawQuantity(msg json.RawMessage) string {
	if len(msg) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	v := strings.TrimSpace(string(msg))
	if v == "null" {
		return ""
	}
	return v
}
