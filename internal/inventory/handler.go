package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openshelf/openshelf/internal/platform/httpx"
)

// Handler wires copy availability HTTP endpoints. The UI reads these to show
// whether an item can be loaned before attempting a loan.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers copy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.getCopy)
	r.Get("/{id}/availability", h.availability)
}

// MountCatalogRoutes registers catalog-item-scoped copy listings.
func (h *Handler) MountCatalogRoutes(r chi.Router) {
	r.Get("/{id}/copies", h.listByCatalogItem)
}

type copyResponse struct {
	ID            int64     `json:"id"`
	CatalogItemID int64     `json:"catalog_item_id"`
	Barcode       string    `json:"barcode"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toCopyResponse(c Copy) copyResponse {
	return copyResponse{
		ID:            c.ID,
		CatalogItemID: c.CatalogItemID,
		Barcode:       c.Barcode,
		Status:        string(c.Status),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (h *Handler) getCopy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid copy id")
		return
	}
	copy, err := h.service.GetCopy(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCopyResponse(copy))
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid copy id")
		return
	}
	available, err := h.service.IsAvailable(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (h *Handler) listByCatalogItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid catalog item id")
		return
	}
	copies, err := h.service.ListByCatalogItem(r.Context(), id)
	if err != nil {
		h.logger.Warn("list copies", slog.Int64("catalog_item_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]copyResponse, 0, len(copies))
	for _, c := range copies {
		out = append(out, toCopyResponse(c))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"copies": out})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
