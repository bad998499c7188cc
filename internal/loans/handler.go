package loans

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openshelf/openshelf/internal/fines"
	"github.com/openshelf/openshelf/internal/platform/httpx"
)

// FineConfigSource supplies the current fee parameters so commands that omit
// an explicit rate fall back to the administered configuration.
type FineConfigSource interface {
	GetConfig(ctx context.Context) (fines.FineConfig, error)
}

// Handler wires loan HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	config    FineConfigSource
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, config FineConfigSource) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		config:    config,
		validator: validator.New(),
	}
}

// MountRoutes registers loan routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createLoan)
	r.Get("/", h.listLoans)
	r.Get("/{id}", h.getLoan)
	r.Post("/{id}/return", h.registerReturn)
	r.Post("/{id}/loss", h.registerLoss)
}

// MountPeopleRoutes registers borrower-scoped lookups.
func (h *Handler) MountPeopleRoutes(r chi.Router) {
	r.Get("/{id}/active-loan", h.hasActiveLoan)
}

type createLoanRequest struct {
	PersonID      int64  `json:"person_id" validate:"required,gt=0"`
	CatalogItemID int64  `json:"catalog_item_id" validate:"required,gt=0"`
	LoanDate      string `json:"loan_date" validate:"required,datetime=2006-01-02"`
	DueDate       string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

type registerReturnRequest struct {
	LateFeePerDay *float64 `json:"late_fee_per_day" validate:"omitempty,gte=0"`
}

type registerLossRequest struct {
	LossFee *float64 `json:"loss_fee" validate:"omitempty,gte=0"`
}

type loanResponse struct {
	ID              int64      `json:"id"`
	Reference       string     `json:"reference"`
	PersonID        int64      `json:"person_id"`
	CatalogItemID   int64      `json:"catalog_item_id"`
	CopyID          int64      `json:"copy_id"`
	LoanDate        string     `json:"loan_date"`
	DueDate         string     `json:"due_date"`
	ReturnedAt      *time.Time `json:"returned_at,omitempty"`
	EffectiveStatus string     `json:"effective_status"`
}

func toLoanResponse(l Loan, now time.Time) loanResponse {
	return loanResponse{
		ID:              l.ID,
		Reference:       l.Reference.String(),
		PersonID:        l.PersonID,
		CatalogItemID:   l.CatalogItemID,
		CopyID:          l.CopyID,
		LoanDate:        l.LoanedAt.Format("2006-01-02"),
		DueDate:         l.DueAt.Format("2006-01-02"),
		ReturnedAt:      l.ReturnedAt,
		EffectiveStatus: string(EffectiveStatus(l, now)),
	}
}

func (h *Handler) createLoan(w http.ResponseWriter, r *http.Request) {
	var req createLoanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	loanDate, _ := time.Parse("2006-01-02", req.LoanDate)
	dueDate, _ := time.Parse("2006-01-02", req.DueDate)

	loan, err := h.service.CreateLoan(r.Context(), CreateLoanInput{
		PersonID:      req.PersonID,
		CatalogItemID: req.CatalogItemID,
		LoanedAt:      loanDate,
		DueAt:         dueDate,
	})
	if err != nil {
		h.logger.Warn("create loan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toLoanResponse(loan, time.Now()))
}

func (h *Handler) registerReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid loan id")
		return
	}
	// An empty body is a valid request: the rate falls back to config.
	var req registerReturnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	rate := req.LateFeePerDay
	if rate == nil {
		cfg, err := h.config.GetConfig(r.Context())
		if err != nil {
			h.logger.Error("load fine config", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		rate = &cfg.LateFeePerDay
	}

	loan, err := h.service.RegisterReturn(r.Context(), id, *rate)
	if err != nil {
		h.logger.Warn("register return", slog.Int64("loan_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLoanResponse(loan, time.Now()))
}

func (h *Handler) registerLoss(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid loan id")
		return
	}
	var req registerLossRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	fee := req.LossFee
	if fee == nil {
		cfg, err := h.config.GetConfig(r.Context())
		if err != nil {
			h.logger.Error("load fine config", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		fee = &cfg.LossFee
	}

	loan, err := h.service.RegisterLoss(r.Context(), id, *fee)
	if err != nil {
		h.logger.Warn("register loss", slog.Int64("loan_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLoanResponse(loan, time.Now()))
}

func (h *Handler) getLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid loan id")
		return
	}
	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLoanResponse(loan, time.Now()))
}

func (h *Handler) listLoans(w http.ResponseWriter, r *http.Request) {
	var personID int64
	if raw := r.URL.Query().Get("person_id"); raw != "" {
		personID, _ = strconv.ParseInt(raw, 10, 64)
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	loans, err := h.service.ListLoans(r.Context(), ListLoansRequest{
		Status:   EffectiveLoanStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		PersonID: personID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.logger.Warn("list loans", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	now := time.Now()
	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l, now))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"loans": out})
}

func (h *Handler) hasActiveLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid person id")
		return
	}
	active, err := h.service.HasActiveLoan(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"has_active_loan": active})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
