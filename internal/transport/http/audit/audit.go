// Package audit serves the audit log of the active restaurant.
package audit

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/kds/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/kds/internal/transport/http/respond"
	"github.com/gorilla/schema"
)

const defaultLimit = 50

type service interface {
	AuditLog(ctx context.Context, limit uint64) ([]auditlog.AuditLogOrder, error)
}

type listAuditRequest struct {
	Limit uint64 `schema:"limit,omitempty"`
}

// ListAuditLogs handles the audit listing, newest first.
func ListAuditLogs(w http.ResponseWriter, r *http.Request, service service) {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	query := &listAuditRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request", "error", err)

		return
	}
	if query.Limit == 0 {
		query.Limit = defaultLimit
	}

	entries, err := service.AuditLog(r.Context(), query.Limit)
	if err != nil {
		respond.Error(w, err)

		return
	}
	if entries == nil {
		entries = []auditlog.AuditLogOrder{}
	}

	respond.JSON(w, http.StatusOK, entries)
}
