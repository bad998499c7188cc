package fines

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openshelf/openshelf/internal/platform/httpx"
)

// Handler wires fine ledger HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers fine routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listFines)
	r.Get("/{id}", h.getFine)
	r.Post("/{id}/settle", h.settleFine)
	r.Get("/config", h.getConfig)
	r.Put("/config", h.updateConfig)
}

type settleRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=PAID CONDONED"`
}

type configRequest struct {
	LateFeePerDay *float64 `json:"late_fee_per_day" validate:"required,gte=0"`
	LossFee       *float64 `json:"loss_fee" validate:"required,gte=0"`
}

func (h *Handler) settleFine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid fine id")
		return
	}
	var req settleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	fine, err := h.service.Settle(r.Context(), id, FineState(strings.ToUpper(req.Outcome)))
	if err != nil {
		h.logger.Warn("settle fine", slog.Int64("fine_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fineResponse(fine))
}

func (h *Handler) getFine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid fine id")
		return
	}
	fine, err := h.service.GetFine(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fineResponse(fine))
}

func (h *Handler) listFines(w http.ResponseWriter, r *http.Request) {
	var req ListFinesRequest
	if raw := r.URL.Query().Get("person_id"); raw != "" {
		req.PersonID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := r.URL.Query().Get("loan_id"); raw != "" {
		req.LoanID, _ = strconv.ParseInt(raw, 10, 64)
	}
	req.State = FineState(strings.ToUpper(r.URL.Query().Get("state")))

	fines, err := h.service.ListFines(r.Context(), req)
	if err != nil {
		h.logger.Warn("list fines", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(fines))
	for _, f := range fines {
		out = append(out, fineResponse(f))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"fines": out})
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetConfig(r.Context())
	if err != nil {
		h.logger.Error("get fine config", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, configResponse(cfg))
}

func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	cfg, err := h.service.UpdateConfig(r.Context(), *req.LateFeePerDay, *req.LossFee)
	if err != nil {
		h.logger.Warn("update fine config", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, configResponse(cfg))
}

func fineResponse(f Fine) map[string]any {
	return map[string]any{
		"id":         f.ID,
		"loan_id":    f.LoanID,
		"person_id":  f.PersonID,
		"kind":       f.Kind,
		"amount":     f.Amount,
		"note":       f.Note,
		"state":      f.State,
		"created_at": f.CreatedAt,
		"settled_at": f.SettledAt,
	}
}

func configResponse(cfg FineConfig) map[string]any {
	return map[string]any{
		"late_fee_per_day": cfg.LateFeePerDay,
		"loss_fee":         cfg.LossFee,
		"updated_at":       cfg.UpdatedAt,
	}
}
