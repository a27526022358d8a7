// Package orders serves the tickets of the working set.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/transport/http/respond"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

// service is an interface for the service layer.
type service interface {
	Orders(ctx context.Context, f order.Filter) ([]order.Order, error)
	Order(ctx context.Context, id string) (order.Order, error)
	SetStatus(ctx context.Context, orderID string, status order.Status) error
}

// Ticket is an order with the derived fields the display renders.
type Ticket struct {
	order.Order
	Total   string `json:"total"`
	Elapsed string `json:"elapsed"`
	Urgent  bool   `json:"urgent"`
}

// NewTicket derives the display fields of o at now.
func NewTicket(o order.Order, now time.Time) Ticket {
	return Ticket{
		Order:   o,
		Total:   order.FormatMoney(o.TotalMoney),
		Elapsed: order.FormatElapsed(o.CreatedAt, now),
		Urgent:  order.IsUrgent(o, now),
	}
}

// listOrdersRequest holds the query of GET /api/orders.
type listOrdersRequest struct {
	Filter string `schema:"filter,omitempty"`
}

// setStatusRequest is the body of PUT /api/orders/{id}/status.
type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListOrders handles the list request. Without a filter the current one applies.
func ListOrders(w http.ResponseWriter, r *http.Request, service service, now time.Time) {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	query := &listOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request", "error", err)

		return
	}

	var f order.Filter
	if query.Filter != "" {
		parsed, err := order.ParseFilter(query.Filter)
		if err != nil {
			respond.Error(w, err)

			return
		}
		f = parsed
	}

	orders, err := service.Orders(r.Context(), f)
	if err != nil {
		respond.Error(w, err)

		return
	}

	tickets := make([]Ticket, len(orders))
	for i, o := range orders {
		tickets[i] = NewTicket(o, now)
	}
	respond.JSON(w, http.StatusOK, tickets)
}

// GetOrder handles the single ticket request.
func GetOrder(w http.ResponseWriter, r *http.Request, service service, now time.Time) {
	o, err := service.Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, NewTicket(o, now))
}

// SetStatus handles a kitchen status change and answers with the resulting ticket.
func SetStatus(w http.ResponseWriter, r *http.Request, service service, now time.Time) {
	req := setStatusRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for status change", "error", err)

		return
	}
	if err := validator.New().Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for status change", "error", err)

		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		respond.Error(w, fmt.Errorf("%w: %q", err, req.Status))

		return
	}

	id := chi.URLParam(r, "id")
	if err := service.SetStatus(r.Context(), id, status); err != nil {
		respond.Error(w, err)

		return
	}

	o, err := service.Order(r.Context(), id)
	if err != nil {
		// A successful cancel removes the order from the working set.
		w.WriteHeader(http.StatusNoContent)

		return
	}
	respond.JSON(w, http.StatusOK, NewTicket(o, now))
}
