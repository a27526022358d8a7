// Package respond writes JSON bodies and maps service errors onto HTTP statuses.
package respond

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/service/models/session"
	"github.com/corray333/backend-labs/kds/internal/service/services/kdssvc"
	"github.com/corray333/backend-labs/kds/internal/service/services/syncengine"
	"github.com/corray333/backend-labs/kds/internal/transport/api"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

// Error writes err with the status it maps to.
func Error(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", status, "error", err)
	} else {
		slog.Debug("Request rejected", "status", status, "error", err)
	}
	JSON(w, status, ErrorResponse{Error: err.Error()})
}

// StatusOf maps a service error onto an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidFilter),
		errors.Is(err, session.ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, syncengine.ErrUnknownOrder),
		errors.Is(err, api.ErrRestaurantNotFound):
		return http.StatusNotFound
	case errors.Is(err, kdssvc.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, order.ErrBackwardTransition):
		return http.StatusConflict
	case errors.Is(err, api.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, api.ErrNetworkUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, kdssvc.ErrStopped),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
