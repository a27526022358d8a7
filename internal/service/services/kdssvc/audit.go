package kdssvc

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/google/uuid"
)

// auditWriteTimeout bounds a single audit insert.
const auditWriteTimeout = 5 * time.Second

// auditEntry builds an entry for the active restaurant. Loop goroutine only.
func (s *KDSService) auditEntry(
	kind auditlog.Kind,
	orderID string,
	from, to order.Status,
	outcome auditlog.Outcome,
	err error,
) auditlog.AuditLogOrder {
	return s.auditEntryFor(s.session.Code, kind, orderID, from, to, outcome, err)
}

func (s *KDSService) auditEntryFor(
	restaurantCode string,
	kind auditlog.Kind,
	orderID string,
	from, to order.Status,
	outcome auditlog.Outcome,
	err error,
) auditlog.AuditLogOrder {
	entry := auditlog.AuditLogOrder{
		ID:             uuid.NewString(),
		Kind:           kind,
		RestaurantCode: restaurantCode,
		OrderID:        orderID,
		FromStatus:     from.String(),
		ToStatus:       to.String(),
		Outcome:        outcome,
		CreatedAt:      s.now().UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
	}

	return entry
}

// auditStatusChange records the outcome of a kitchen command, even when ctx is canceled.
func (s *KDSService) auditStatusChange(
	ctx context.Context,
	restaurantCode, orderID string,
	from, to order.Status,
	outcome auditlog.Outcome,
	err error,
) {
	entry := s.auditEntryFor(restaurantCode, auditlog.KindStatusChange, orderID, from, to, outcome, err)
	s.writeAudit(context.WithoutCancel(ctx), entry)
}

// writeAudit stores entry. Failures are logged; the audit log never blocks a command.
func (s *KDSService) writeAudit(ctx context.Context, entry auditlog.AuditLogOrder) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
	defer cancel()

	if err := s.audit.SaveAuditLogs(ctx, []auditlog.AuditLogOrder{entry}); err != nil {
		s.log.Error("Failed to write audit log", "order_id", entry.OrderID, "kind", string(entry.Kind), "error", err)
	}
}

// AuditLog returns the latest audit entries of the active restaurant.
func (s *KDSService) AuditLog(ctx context.Context, limit uint64) ([]auditlog.AuditLogOrder, error) {
	if s.audit == nil {
		return nil, nil
	}
	var code string
	if err := s.do(ctx, func(context.Context) { code = s.session.Code }); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, ErrNoSession
	}

	return s.audit.ListAuditLogs(ctx, code, limit)
}
