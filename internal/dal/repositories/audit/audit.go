package audit

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/kds/internal/dal"
	"github.com/corray333/backend-labs/kds/internal/service/models/auditlog"
)

// AuditRepository implements the audit repository on SQL.
type AuditRepository struct {
	client dal.Client
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(client dal.Client) *AuditRepository {
	return &AuditRepository{
		client: client,
	}
}

// SaveAuditLogs saves audit log entries using a squirrel bulk insert.
func (r *AuditRepository) SaveAuditLogs(ctx context.Context, auditLogs []auditlog.AuditLogOrder) error {
	if len(auditLogs) == 0 {
		return nil
	}

	builder := sq.Insert("audit_log_order").
		Columns(
			"id",
			"kind",
			"restaurant_code",
			"order_id",
			"from_status",
			"to_status",
			"outcome",
			"error",
			"created_at",
		).
		PlaceholderFormat(r.client.Placeholder())

	for _, auditLog := range auditLogs {
		builder = builder.Values(
			auditLog.ID,
			string(auditLog.Kind),
			auditLog.RestaurantCode,
			auditLog.OrderID,
			auditLog.FromStatus,
			auditLog.ToStatus,
			string(auditLog.Outcome),
			auditLog.Error,
			auditLog.CreatedAt.UTC(),
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build audit logs insert query: %w", err)
	}

	if _, err := r.client.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk insert audit logs: %w", err)
	}

	return nil
}

// ListAuditLogs returns the latest entries of a restaurant, newest first.
func (r *AuditRepository) ListAuditLogs(
	ctx context.Context,
	restaurantCode string,
	limit uint64,
) ([]auditlog.AuditLogOrder, error) {
	builder := sq.Select(
		"id",
		"kind",
		"restaurant_code",
		"order_id",
		"from_status",
		"to_status",
		"outcome",
		"error",
		"created_at",
	).
		From("audit_log_order").
		Where(sq.Eq{"restaurant_code": restaurantCode}).
		OrderBy("created_at DESC", "id").
		PlaceholderFormat(r.client.Placeholder())
	if limit > 0 {
		builder = builder.Limit(limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit logs select query: %w", err)
	}

	rows, err := r.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var out []auditlog.AuditLogOrder
	for rows.Next() {
		var (
			entry   auditlog.AuditLogOrder
			kind    string
			outcome string
		)
		if err := rows.Scan(
			&entry.ID,
			&kind,
			&entry.RestaurantCode,
			&entry.OrderID,
			&entry.FromStatus,
			&entry.ToStatus,
			&outcome,
			&entry.Error,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entry.Kind = auditlog.Kind(kind)
		entry.Outcome = auditlog.Outcome(outcome)
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return out, nil
}
