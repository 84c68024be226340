package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("marshal response", zap.Error(err))
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body) //nolint:errcheck
}

// respondError maps domain sentinel errors onto HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, model.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientCredits):
		code = http.StatusPaymentRequired
	case errors.Is(err, model.ErrForbidden), errors.Is(err, model.ErrLimitReached):
		code = http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrProviderFailure):
		code = http.StatusBadGateway
	default:
		code = http.StatusInternalServerError
	}

	if code == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
		respondJSON(w, code, errorResponse{Error: "internal server error"})
		return
	}
	respondJSON(w, code, errorResponse{Error: err.Error()})
}
