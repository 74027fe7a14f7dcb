package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"campusgig/internal/errors"
)

// statusFor maps domain errors to HTTP status codes and user-facing
// messages. Anything unrecognized is a transient infrastructure failure:
// 500, generic message, details only in the log.
func statusFor(err error) (int, string) {
	var ve *errors.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Msg
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, errors.ErrAlreadyAssigned),
		errors.Is(err, errors.ErrDuplicateRating),
		errors.Is(err, errors.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		jsonError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	}
	jsonError(w, msg, code)
}
