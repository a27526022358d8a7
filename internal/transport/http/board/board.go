// Package board serves the status bar: connection state, badge counts and the filter.
package board

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/service/services/kdssvc"
	"github.com/corray333/backend-labs/kds/internal/service/services/syncengine"
	"github.com/corray333/backend-labs/kds/internal/transport/http/respond"
)

type service interface {
	State(ctx context.Context) (kdssvc.State, error)
	Counts(ctx context.Context) (syncengine.Counts, error)
	SetFilter(ctx context.Context, f order.Filter) error
	Resync(ctx context.Context) error
}

type setFilterRequest struct {
	Filter string `json:"filter"`
}

// GetState handles the status bar request.
func GetState(w http.ResponseWriter, r *http.Request, service service) {
	st, err := service.State(r.Context())
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, st)
}

// GetCounts handles the badge counts request.
func GetCounts(w http.ResponseWriter, r *http.Request, service service) {
	c, err := service.Counts(r.Context())
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, c)
}

// SetFilter handles a filter change. An empty filter selects ALL.
func SetFilter(w http.ResponseWriter, r *http.Request, service service) {
	req := setFilterRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for filter change", "error", err)

		return
	}

	f, err := order.ParseFilter(req.Filter)
	if err != nil {
		respond.Error(w, err)

		return
	}
	if err := service.SetFilter(r.Context(), f); err != nil {
		respond.Error(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Resync handles a manual snapshot refresh.
func Resync(w http.ResponseWriter, r *http.Request, service service) {
	if err := service.Resync(r.Context()); err != nil {
		respond.Error(w, err)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}
