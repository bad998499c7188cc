package inventory

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *memCopies) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(repo))

	r := chi.NewRouter()
	r.Route("/api/copies", h.MountRoutes)
	r.Route("/api/catalog-items", h.MountCatalogRoutes)
	return r
}

func doGet(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetCopyEndpoint(t *testing.T) {
	repo := newMemCopies()
	repo.add(1, 10, StatusAvailable)
	router := newTestRouter(repo)

	rec := doGet(t, router, "/api/copies/1")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, float64(10), got["catalog_item_id"])
	require.Equal(t, "AVAILABLE", got["status"])
}

func TestGetCopyEndpointMapsNotFoundTo404(t *testing.T) {
	router := newTestRouter(newMemCopies())

	rec := doGet(t, router, "/api/copies/99")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetCopyEndpointRejectsBadID(t *testing.T) {
	router := newTestRouter(newMemCopies())

	rec := doGet(t, router, "/api/copies/abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestAvailabilityEndpoint(t *testing.T) {
	repo := newMemCopies()
	repo.add(1, 10, StatusAvailable)
	repo.add(2, 10, StatusLoaned)
	router := newTestRouter(repo)

	rec := doGet(t, router, "/api/copies/1/availability")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got["available"])

	rec = doGet(t, router, "/api/copies/2/availability")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.False(t, got["available"])

	rec = doGet(t, router, "/api/copies/99/availability")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCopiesByCatalogItemEndpoint(t *testing.T) {
	repo := newMemCopies()
	repo.add(1, 10, StatusLoaned)
	repo.add(2, 10, StatusAvailable)
	repo.add(3, 11, StatusAvailable)
	router := newTestRouter(repo)

	rec := doGet(t, router, "/api/catalog-items/10/copies")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Copies []copyResponse `json:"copies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Copies, 2)
	require.Equal(t, "LOANED", got.Copies[0].Status)
	require.Equal(t, "AVAILABLE", got.Copies[1].Status)
}
