package kdssvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/service/models/session"
	"github.com/corray333/backend-labs/kds/internal/service/services/syncengine"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// SetStatus changes the status of an order on behalf of the kitchen.
//
// The change is shown immediately and sent to the backend. When the backend
// call fails it is rolled back and the backend error is returned. Tapping the
// status an order already has is a no-op.
func (s *KDSService) SetStatus(ctx context.Context, orderID string, status order.Status) error {
	ctx, span := otel.Tracer("kdssvc").Start(ctx, "KDSService.SetStatus")
	defer span.End()
	span.SetAttributes(attribute.String("kds.order_id", orderID), attribute.String("kds.status", status.String()))

	var (
		eng      *syncengine.Engine
		token    syncengine.RollbackToken
		code     string
		from     order.Status
		applyErr error
	)
	err := s.do(context.WithoutCancel(ctx), func(context.Context) {
		if s.session.Empty() {
			applyErr = ErrNoSession
			return
		}
		eng = s.engine
		code = s.session.Code
		if current, ok := eng.Get(orderID); ok {
			from = current.Status
		}
		token, applyErr = eng.ApplyOptimistic(orderID, status)
	})
	if err != nil {
		return err
	}

	switch {
	case errors.Is(applyErr, syncengine.ErrNoChange):
		s.log.Debug("Status already set", "order_id", orderID, "status", status.String())
		return nil
	case errors.Is(applyErr, order.ErrBackwardTransition):
		s.log.Warn("Backward status change rejected", "order_id", orderID, "from", from.String(), "to", status.String())
		s.auditStatusChange(ctx, code, orderID, from, status, auditlog.OutcomeRejected, applyErr)

		return applyErr
	case applyErr != nil:
		return applyErr
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		s.rollback(ctx, eng, token)
		s.log.Debug("Status change abandoned", "order_id", orderID, "error", ctxErr)

		return ctxErr
	}

	restErr := s.backend.SetStatus(ctx, code, orderID, status)

	err = s.do(context.WithoutCancel(ctx), func(context.Context) {
		if eng != s.engine {
			return
		}
		if restErr == nil {
			_ = eng.Commit(token)
			return
		}
		if err := eng.Rollback(token); err != nil {
			s.log.Debug("Rollback skipped", "order_id", orderID, "error", err)
		}
	})
	if err != nil {
		return err
	}

	if restErr != nil {
		s.log.Warn("Status change rolled back", "order_id", orderID, "status", status.String(), "error", restErr)
		s.auditStatusChange(ctx, code, orderID, from, status, auditlog.OutcomeRolledBack, restErr)

		return fmt.Errorf("failed to set order status: %w", restErr)
	}
	s.log.Info("Status changed", "order_id", orderID, "from", from.String(), "to", status.String())
	s.auditStatusChange(ctx, code, orderID, from, status, auditlog.OutcomeCommitted, nil)

	return nil
}

// rollback undoes an optimistic change on the loop unless the engine was replaced meanwhile.
func (s *KDSService) rollback(ctx context.Context, eng *syncengine.Engine, token syncengine.RollbackToken) {
	_ = s.do(context.WithoutCancel(ctx), func(context.Context) {
		if eng != s.engine {
			return
		}
		if err := eng.Rollback(token); err != nil {
			s.log.Debug("Rollback skipped", "order_id", token.OrderID, "error", err)
		}
	})
}

// SwitchTenant replaces the working set with an empty one for next and, while
// connected, joins its room and fetches its snapshot. An empty session logs out.
func (s *KDSService) SwitchTenant(ctx context.Context, next session.Session) error {
	return s.do(ctx, func(loopCtx context.Context) {
		s.switchTenant(loopCtx, next)
	})
}

// Resync fetches a fresh snapshot for the active restaurant.
func (s *KDSService) Resync(ctx context.Context) error {
	var noSession bool
	err := s.do(ctx, func(loopCtx context.Context) {
		if s.session.Empty() {
			noSession = true
			return
		}
		s.startSnapshot(loopCtx)
	})
	if err != nil {
		return err
	}
	if noSession {
		return ErrNoSession
	}

	return nil
}

// SetFilter changes the filter of the default view.
func (s *KDSService) SetFilter(ctx context.Context, f order.Filter) error {
	return s.do(ctx, func(context.Context) {
		s.filter = f
		s.engine.SetFilter(f)
	})
}

// Orders returns the working set restricted to f, newest first. An empty filter
// means the current one.
func (s *KDSService) Orders(ctx context.Context, f order.Filter) ([]order.Order, error) {
	var orders []order.Order
	err := s.do(ctx, func(context.Context) {
		if f == "" {
			orders = s.engine.FilteredView()
			return
		}
		orders = s.engine.View(f)
	})

	return orders, err
}

// Order returns a single order of the working set.
func (s *KDSService) Order(ctx context.Context, id string) (order.Order, error) {
	var (
		o  order.Order
		ok bool
	)
	if err := s.do(ctx, func(context.Context) { o, ok = s.engine.Get(id) }); err != nil {
		return order.Order{}, err
	}
	if !ok {
		return order.Order{}, syncengine.ErrUnknownOrder
	}

	return o, nil
}

// Counts returns the badge counts of the whole working set.
func (s *KDSService) Counts(ctx context.Context) (syncengine.Counts, error) {
	var c syncengine.Counts
	err := s.do(ctx, func(context.Context) { c = s.engine.Counts() })

	return c, err
}

// State returns the status bar summary.
func (s *KDSService) State(ctx context.Context) (State, error) {
	var st State
	err := s.do(ctx, func(context.Context) {
		st = State{
			Connected:      s.connected,
			Syncing:        s.syncing,
			RestaurantCode: s.session.Code,
			RestaurantName: s.session.Name,
			Filter:         s.engine.CurrentFilter(),
			Counts:         s.engine.Counts(),
			Pending:        s.engine.Pending(),
		}
	})

	return st, err
}

// CheckUrgent returns the orders that became urgent since the previous call.
func (s *KDSService) CheckUrgent(ctx context.Context, now time.Time) ([]order.Order, error) {
	var fresh []order.Order
	err := s.do(ctx, func(context.Context) {
		urgent := s.engine.Urgent(now)
		seen := make(map[string]struct{}, len(urgent))
		for _, o := range urgent {
			seen[o.ID] = struct{}{}
			if _, ok := s.urgentSeen[o.ID]; !ok {
				fresh = append(fresh, o)
			}
		}
		s.urgentSeen = seen
	})

	return fresh, err
}
