package httpx

import (
	"errors"
	"net/http"

	"github.com/openshelf/openshelf/internal/shared"
)

// RespondError maps categorised domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrStateConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrConcurrent):
		problemJSON(w, http.StatusConflict, ProblemDetail{
			Title:     "Concurrent Modification",
			Status:    http.StatusConflict,
			Detail:    shared.UserSafeMessage(err),
			Retryable: true,
		})
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
