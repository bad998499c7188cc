package loans

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf/internal/fines"
)

type staticConfig struct {
	cfg fines.FineConfig
}

func (c staticConfig) GetConfig(ctx context.Context) (fines.FineConfig, error) {
	return c.cfg, nil
}

func newTestRouter(repo *memRepo, now time.Time) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, nil, nil).WithClock(fixedClock(now))
	h := NewHandler(logger, svc, staticConfig{cfg: fines.FineConfig{LateFeePerDay: 0.50, LossFee: 25}})

	r := chi.NewRouter()
	r.Route("/api/loans", h.MountRoutes)
	r.Route("/api/people", h.MountPeopleRoutes)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateLoanEndpoint(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 3)
	router := newTestRouter(repo, day(2024, time.January, 2))

	rec := doJSON(t, router, http.MethodPost, "/api/loans",
		`{"person_id": 1, "catalog_item_id": 3, "loan_date": "2024-01-01", "due_date": "2024-01-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "2024-01-15", got["due_date"])
	require.Equal(t, "ACTIVE", got["effective_status"])
	require.NotEmpty(t, got["reference"])
}

func TestCreateLoanEndpointRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(newMemRepo(), day(2024, time.January, 2))

	rec := doJSON(t, router, http.MethodPost, "/api/loans", `{"person_id": `)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestCreateLoanEndpointRejectsBadDate(t *testing.T) {
	router := newTestRouter(newMemRepo(), day(2024, time.January, 2))

	rec := doJSON(t, router, http.MethodPost, "/api/loans",
		`{"person_id": 1, "catalog_item_id": 3, "loan_date": "01/01/2024", "due_date": "2024-01-15"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLoanEndpointMapsInvalidRangeTo400(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 3)
	router := newTestRouter(repo, day(2024, time.January, 2))

	rec := doJSON(t, router, http.MethodPost, "/api/loans",
		`{"person_id": 1, "catalog_item_id": 3, "loan_date": "2024-01-15", "due_date": "2024-01-15"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLoanEndpointMapsExclusivityTo409(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 3)
	repo.addCopy(2, 3)
	router := newTestRouter(repo, day(2024, time.January, 2))

	body := `{"person_id": 1, "catalog_item_id": 3, "loan_date": "2024-01-01", "due_date": "2024-01-15"}`
	rec := doJSON(t, router, http.MethodPost, "/api/loans", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/loans", body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestReturnEndpointUsesConfiguredRateWhenOmitted(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 3)
	router := newTestRouter(repo, day(2024, time.January, 20))

	rec := doJSON(t, router, http.MethodPost, "/api/loans",
		`{"person_id": 1, "catalog_item_id": 3, "loan_date": "2024-01-01", "due_date": "2024-01-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/loans/1/return", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "RETURNED", got["effective_status"])

	// Five days late at the configured 0.50 per day.
	require.Len(t, repo.fines, 1)
	for _, f := range repo.fines {
		require.InDelta(t, 2.50, f.Amount, 1e-9)
	}
}

func TestReturnAndLossEndpointsAcceptEmptyBody(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 3)
	repo.addCopy(2, 3)
	router := newTestRouter(repo, day(2024, time.January, 20))

	rec := doJSON(t, router, http.MethodPost, "/api/loans",
		`{"person_id": 1, "catalog_item_id": 3, "loan_date": "2024-01-01", "due_date": "2024-01-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/loans",
		`{"person_id": 2, "catalog_item_id": 3, "loan_date": "2024-01-01", "due_date": "2024-01-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/loans/1/return", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/loans/2/loss", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Both fell back to the configured rates: 5 late days at 0.50, flat 25.
	require.Len(t, repo.fines, 2)
	for _, f := range repo.fines {
		switch f.Kind {
		case fines.KindLate:
			require.InDelta(t, 2.50, f.Amount, 1e-9)
		case fines.KindLost:
			require.Equal(t, 25.0, f.Amount)
		}
	}
}

func TestReturnEndpointRejectsSecondReturn(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 3)
	router := newTestRouter(repo, day(2024, time.January, 10))

	rec := doJSON(t, router, http.MethodPost, "/api/loans",
		`{"person_id": 1, "catalog_item_id": 3, "loan_date": "2024-01-01", "due_date": "2024-01-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/loans/1/return", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/loans/1/return", `{}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLossEndpoint(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 3)
	router := newTestRouter(repo, day(2024, time.January, 10))

	rec := doJSON(t, router, http.MethodPost, "/api/loans",
		`{"person_id": 1, "catalog_item_id": 3, "loan_date": "2024-01-01", "due_date": "2024-01-15"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/loans/1/loss", `{"loss_fee": 30}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "LOST", got["effective_status"])
	for _, f := range repo.fines {
		require.Equal(t, 30.0, f.Amount)
	}
}

func TestGetLoanEndpointNotFound(t *testing.T) {
	router := newTestRouter(newMemRepo(), day(2024, time.January, 2))

	req := httptest.NewRequest(http.MethodGet, "/api/loans/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActiveLoanLookupEndpoint(t *testing.T) {
	repo := newMemRepo()
	repo.addCopy(1, 3)
	router := newTestRouter(repo, day(2024, time.January, 2))

	req := httptest.NewRequest(http.MethodGet, "/api/people/1/active-loan", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"has_active_loan": false}`, rec.Body.String())

	doJSON(t, router, http.MethodPost, "/api/loans",
		`{"person_id": 1, "catalog_item_id": 3, "loan_date": "2024-01-01", "due_date": "2024-01-15"}`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"has_active_loan": true}`, rec.Body.String())
}
