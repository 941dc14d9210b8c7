package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/layerworks/layerworks/internal/rbac"
	"github.com/layerworks/layerworks/internal/shared"
)

type handlerHarness struct {
	router   chi.Router
	sessions *shared.SessionManager
	repo     *memoryRepo
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "lw_session", "secret", time.Hour, false)
	repo := newMemoryRepo(Product{SKU: "PLA-1", Name: "PLA", Stock: 1, LowStockThreshold: 2})

	h := NewHandler(nil, NewService(repo, nil, nil, nil), rbac.Middleware{Service: rbac.NewService(nil)})
	router := chi.NewRouter()
	router.Route("/api/products", h.MountRoutes)
	return &handlerHarness{router: router, sessions: sessions, repo: repo}
}

func (hh *handlerHarness) do(t *testing.T, method, path, body, role string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	sess, err := hh.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	if role != "" {
		sess.SetPrincipal("11", role)
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	hh.router.ServeHTTP(rr, req)
	return rr
}

func TestHandlerPublicCatalog(t *testing.T) {
	hh := newHandlerHarness(t)

	rr := hh.do(t, http.MethodGet, "/api/products", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Products []Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Products, 1)

	rr = hh.do(t, http.MethodGet, "/api/products/1", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = hh.do(t, http.MethodGet, "/api/products/404", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = hh.do(t, http.MethodGet, "/api/products/abc", "", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerCreateRequiresEditPermission(t *testing.T) {
	hh := newHandlerHarness(t)
	payload := `{"sku":"resin-grey","name":"Resin Grey","material":"resin","unit_price":35,"stock":4,"low_stock_threshold":1}`

	require.Equal(t, http.StatusUnauthorized, hh.do(t, http.MethodPost, "/api/products", payload, "").Code)
	require.Equal(t, http.StatusForbidden, hh.do(t, http.MethodPost, "/api/products", payload, shared.RoleStaff).Code)

	rr := hh.do(t, http.MethodPost, "/api/products", payload, shared.RoleAdmin)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created Product
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, "RESIN-GREY", created.SKU)

	require.Equal(t, http.StatusConflict, hh.do(t, http.MethodPost, "/api/products", payload, shared.RoleAdmin).Code)
	require.Equal(t, http.StatusBadRequest, hh.do(t, http.MethodPost, "/api/products", `{"sku":""}`, shared.RoleAdmin).Code)
}

func TestHandlerRestockAndLowStock(t *testing.T) {
	hh := newHandlerHarness(t)

	rr := hh.do(t, http.MethodGet, "/api/products/low-stock", "", shared.RoleStaff)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "PLA-1")

	rr = hh.do(t, http.MethodPost, "/api/products/1/restock", `{"qty":5,"note":"spool delivery"}`, shared.RoleAdmin)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 6, hh.repo.products[1].Stock)

	rr = hh.do(t, http.MethodPost, "/api/products/1/restock", `{"qty":0}`, shared.RoleAdmin)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, http.StatusUnauthorized, hh.do(t, http.MethodGet, "/api/products/low-stock", "", "").Code)
}

func TestHandlerRestockNegativeStockIsConflict(t *testing.T) {
	hh := newHandlerHarness(t)
	hh.repo.failRestock = fmt.Errorf("%w: %w", ErrNegativeStock, &pgconn.PgError{Code: "23514"})

	rr := hh.do(t, http.MethodPost, "/api/products/1/restock", `{"qty":5}`, shared.RoleAdmin)
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}
