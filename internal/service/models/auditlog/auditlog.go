package auditlog

import "time"

// Kind distinguishes what an audit entry records.
type Kind string

const (
	// KindStatusChange is a kitchen status command and its outcome.
	KindStatusChange Kind = "status_change"
	// KindAnomaly is a remote event that was rejected, e.g. a backward transition.
	KindAnomaly Kind = "anomaly"
)

// Outcome is the final result of an audited operation.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeRejected   Outcome = "rejected"
)

// AuditLogOrder represents an audit log entry for order status operations.
type AuditLogOrder struct {
	ID             string    `json:"id"`
	Kind           Kind      `json:"kind"`
	RestaurantCode string    `json:"restaurant_code"`
	OrderID        string    `json:"order_id"`
	FromStatus     string    `json:"from_status"`
	ToStatus       string    `json:"to_status"`
	Outcome        Outcome   `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
