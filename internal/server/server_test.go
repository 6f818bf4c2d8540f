package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cartsync/internal/handler"
	"cartsync/internal/infra/broadcast"
	infraRepo "cartsync/internal/infra/repository"
	"cartsync/internal/middleware"
	"cartsync/internal/obs"
	"cartsync/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================
// helper
// =====================

type testIDs struct{ n atomic.Int64 }

func (g *testIDs) NewID() string { return fmt.Sprintf("id-%d", g.n.Add(1)) }

type testClock struct{}

func (testClock) Now() time.Time { return time.Now() }

func newTestServer(t *testing.T) (*echo.Echo, *usecase.TabRegistry) {
	t.Helper()
	log := obs.Discard()

	hub := broadcast.NewHub(log)
	storage := infraRepo.NewStorageMemoryRepository(hub)
	ids := &testIDs{}

	tabs := usecase.NewTabRegistry(storage, hub, ids, testClock{}, usecase.TabOptions{
		StorageKey: "cartItems",
		Aliases:    []string{"cartUpdated"},
		ToastTTL:   time.Second,
	}, log)
	t.Cleanup(tabs.CloseAll)

	tokens := middleware.NewOriginTokens("test-secret", time.Hour)
	e := New(Deps{
		Log:     log,
		Tokens:  tokens,
		Origins: handler.NewOriginHandler(usecase.NewOriginUsecase(tokens, ids, testClock{})),
		Carts:   handler.NewCartHandler(tabs),
		Health:  handler.NewHealthHandler(tabs, hub),
	})
	return e, tabs
}

func doJSON(t *testing.T, e *echo.Echo, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, "body=%s", rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func newOrigin(t *testing.T, e *echo.Echo) usecase.OriginOutput {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/origins", "", nil)
	requireStatus(t, rec, http.StatusCreated)
	out := decode[usecase.OriginOutput](t, rec)
	require.NotEmpty(t, out.Token)
	return out
}

func openTab(t *testing.T, e *echo.Echo, token string) handler.OpenTabResponse {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/tabs", token, nil)
	requireStatus(t, rec, http.StatusCreated)
	return decode[handler.OpenTabResponse](t, rec)
}

func addItem(t *testing.T, e *echo.Echo, token, tabID, title, price string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, e, http.MethodPost, "/tabs/"+tabID+"/items", token, handler.AddItemRequest{
		Title:  title,
		Price:  price,
		ImgSrc: "img/" + strings.ToLower(title) + ".png",
	})
}

func getTab(t *testing.T, e *echo.Echo, token, tabID string) usecase.TabSnapshot {
	t.Helper()
	rec := doJSON(t, e, http.MethodGet, "/tabs/"+tabID, token, nil)
	requireStatus(t, rec, http.StatusOK)
	return decode[usecase.TabSnapshot](t, rec)
}

// =====================
// tests
// =====================

func TestServer_TabsRequireToken(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/tabs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_CartFlow(t *testing.T) {
	e, _ := newTestServer(t)
	o := newOrigin(t, e)
	tab := openTab(t, e, o.Token)

	assert.Empty(t, tab.Tab.View.Items)
	assert.False(t, tab.Tab.View.ShowCount)

	//追加 => トースト
	rec := addItem(t, e, o.Token, tab.TabID, "Rose", "Rs.100.00")
	requireStatus(t, rec, http.StatusOK)
	snap := decode[usecase.TabSnapshot](t, rec)
	require.Len(t, snap.View.Items, 1)
	assert.Equal(t, "Rs.100.00", snap.View.Items[0].UnitPrice)
	assert.Equal(t, int64(1), snap.View.Items[0].Quantity)
	assert.Equal(t, "Rs.100.00", snap.View.TotalDisplay)
	require.Len(t, snap.Notices, 1)
	assert.Equal(t, "Rose has been added to your cart!", snap.Notices[0].Message)

	//同じ商品 => 409
	rec = addItem(t, e, o.Token, tab.TabID, "Rose", "Rs.100.00")
	requireStatus(t, rec, http.StatusConflict)
	assert.Equal(t, usecase.DuplicateItemAlert, decode[handler.ErrorResponse](t, rec).Error)

	//価格が読めない => 400
	rec = addItem(t, e, o.Token, tab.TabID, "Tulip", "free")
	requireStatus(t, rec, http.StatusBadRequest)

	//数量（文字列でも数値でもよい）
	rec = doJSON(t, e, http.MethodPatch, "/tabs/"+tab.TabID+"/items/Rose", o.Token, map[string]interface{}{"quantity": "3"})
	requireStatus(t, rec, http.StatusOK)
	snap = decode[usecase.TabSnapshot](t, rec)
	assert.Equal(t, "Rs.300.00", snap.View.TotalDisplay)
	assert.Equal(t, int64(3), snap.View.Count)

	//0以下は1にする
	rec = doJSON(t, e, http.MethodPatch, "/tabs/"+tab.TabID+"/items/Rose", o.Token, map[string]interface{}{"quantity": 0})
	requireStatus(t, rec, http.StatusOK)
	snap = decode[usecase.TabSnapshot](t, rec)
	assert.Equal(t, int64(1), snap.View.Items[0].Quantity)

	//確認でキャンセル => 残る
	rec = doJSON(t, e, http.MethodDelete, "/tabs/"+tab.TabID+"/items/Rose", o.Token, nil)
	requireStatus(t, rec, http.StatusOK)
	removed := decode[handler.RemoveItemResponse](t, rec)
	assert.False(t, removed.Removed)
	assert.Len(t, removed.Tab.View.Items, 1)

	//OK => 消える
	rec = doJSON(t, e, http.MethodDelete, "/tabs/"+tab.TabID+"/items/Rose?confirm=true", o.Token, nil)
	requireStatus(t, rec, http.StatusOK)
	removed = decode[handler.RemoveItemResponse](t, rec)
	assert.True(t, removed.Removed)
	assert.Empty(t, removed.Tab.View.Items)
	assert.Equal(t, "Rs.0.00", removed.Tab.View.TotalDisplay)
}

func TestServer_TitleWithSpaces(t *testing.T) {
	e, _ := newTestServer(t)
	o := newOrigin(t, e)
	tab := openTab(t, e, o.Token)

	requireStatus(t, addItem(t, e, o.Token, tab.TabID, "Red Rose", "40"), http.StatusOK)

	rec := doJSON(t, e, http.MethodPatch, "/tabs/"+tab.TabID+"/items/Red%20Rose", o.Token, map[string]interface{}{"quantity": 2})
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "Rs.80.00", decode[usecase.TabSnapshot](t, rec).View.TotalDisplay)
}

// "/"や"%"を含むtitleはエスケープして送る
func TestServer_TitleWithReservedChars(t *testing.T) {
	e, _ := newTestServer(t)
	o := newOrigin(t, e)
	tab := openTab(t, e, o.Token)

	for _, title := range []string{"Rose/Lily", "100%", "a%41"} {
		t.Run(title, func(t *testing.T) {
			requireStatus(t, addItem(t, e, o.Token, tab.TabID, title, "10"), http.StatusOK)
			path := "/tabs/" + tab.TabID + "/items/" + url.PathEscape(title)

			rec := doJSON(t, e, http.MethodPatch, path, o.Token, map[string]interface{}{"quantity": 3})
			requireStatus(t, rec, http.StatusOK)
			snap := decode[usecase.TabSnapshot](t, rec)
			var qty int64
			for _, it := range snap.View.Items {
				if it.Title == title {
					qty = it.Quantity
				}
			}
			assert.Equal(t, int64(3), qty)

			rec = doJSON(t, e, http.MethodDelete, path+"?confirm=true", o.Token, nil)
			requireStatus(t, rec, http.StatusOK)
			removed := decode[handler.RemoveItemResponse](t, rec)
			assert.True(t, removed.Removed)
			assert.Empty(t, removed.Tab.View.Items)
		})
	}
}

// 他originのタブは見えない
func TestServer_OtherOriginGets404(t *testing.T) {
	e, _ := newTestServer(t)
	a := newOrigin(t, e)
	b := newOrigin(t, e)
	tab := openTab(t, e, a.Token)

	rec := doJSON(t, e, http.MethodGet, "/tabs/"+tab.TabID, b.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = addItem(t, e, b.Token, tab.TabID, "Rose", "1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/tabs/missing", a.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// 2タブ：片方の変更がもう片方に反映される
func TestServer_CrossTabSync(t *testing.T) {
	e, _ := newTestServer(t)
	o := newOrigin(t, e)
	first := openTab(t, e, o.Token)
	second := openTab(t, e, o.Token)

	requireStatus(t, addItem(t, e, o.Token, first.TabID, "Rose", "Rs.100.00"), http.StatusOK)
	require.Eventually(t, func() bool {
		return len(getTab(t, e, o.Token, second.TabID).View.Items) == 1
	}, time.Second, 10*time.Millisecond)

	rec := doJSON(t, e, http.MethodDelete, "/tabs/"+second.TabID+"/items/Rose?confirm=true", o.Token, nil)
	requireStatus(t, rec, http.StatusOK)
	requireStatus(t, addItem(t, e, o.Token, second.TabID, "Lily", "Rs.20.00"), http.StatusOK)
	rec = doJSON(t, e, http.MethodPatch, "/tabs/"+second.TabID+"/items/Lily", o.Token, map[string]interface{}{"quantity": "2"})
	requireStatus(t, rec, http.StatusOK)

	require.Eventually(t, func() bool {
		v := getTab(t, e, o.Token, first.TabID).View
		return len(v.Items) == 1 && v.Items[0].Title == "Lily" && v.TotalDisplay == "Rs.40.00"
	}, time.Second, 10*time.Millisecond)

	//閉じて開き直すと保存値が戻る
	rec = doJSON(t, e, http.MethodDelete, "/tabs/"+first.TabID, o.Token, nil)
	requireStatus(t, rec, http.StatusNoContent)
	third := openTab(t, e, o.Token)
	assert.Equal(t, "Rs.40.00", third.Tab.View.TotalDisplay)
}

func TestServer_Healthz(t *testing.T) {
	e, _ := newTestServer(t)
	o := newOrigin(t, e)
	openTab(t, e, o.Token)
	openTab(t, e, o.Token)

	rec := doJSON(t, e, http.MethodGet, "/healthz", "", nil)
	requireStatus(t, rec, http.StatusOK)
	h := decode[handler.HealthResponse](t, rec)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 2, h.OpenTabs)
}

func TestServer_EventsStream(t *testing.T) {
	e, _ := newTestServer(t)
	srv := httptest.NewServer(e)
	defer srv.Close()

	o := newOrigin(t, e)
	tab := openTab(t, e, o.Token)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/tabs/"+tab.TabID+"/events", nil)
	require.NoError(t, err)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+o.Token)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

	views := make(chan usecase.View, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var v usecase.View
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &v) == nil {
				views <- v
			}
		}
		close(views)
	}()

	next := func() usecase.View {
		select {
		case v, ok := <-views:
			require.True(t, ok, "stream closed")
			return v
		case <-time.After(2 * time.Second):
			t.Fatal("no event")
		}
		return usecase.View{}
	}

	//最初は今の表示
	assert.Empty(t, next().Items)

	requireStatus(t, addItem(t, e, o.Token, tab.TabID, "Rose", "5"), http.StatusOK)
	v := next()
	require.Len(t, v.Items, 1)
	assert.Equal(t, "Rs.5.00", v.TotalDisplay)
}
