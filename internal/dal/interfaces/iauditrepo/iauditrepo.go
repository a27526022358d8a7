package iauditrepo

import (
	"context"

	"github.com/corray333/backend-labs/kds/internal/service/models/auditlog"
)

// IAuditRepository is interface for the order audit log.
type IAuditRepository interface {
	SaveAuditLogs(ctx context.Context, auditLogs []auditlog.AuditLogOrder) error
	ListAuditLogs(ctx context.Context, restaurantCode string, limit uint64) ([]auditlog.AuditLogOrder, error)
}
