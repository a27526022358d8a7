package kdssvc

import (
	"context"
	"errors"

	"github.com/corray333/backend-labs/kds/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/service/models/session"
	"github.com/corray333/backend-labs/kds/internal/service/services/syncengine"
	"github.com/corray333/backend-labs/kds/internal/transport/push"
)

// Run is the loop. It applies push events from events and queued commands in the
// order they arrive until ctx is done or events is closed.
func (s *KDSService) Run(ctx context.Context, events <-chan push.Event) error {
	defer close(s.done)
	defer s.engine.Close()

	s.log.Info("KDS loop started", "restaurant_code", s.session.Code)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("KDS loop stopped")

			return nil
		case ev, ok := <-events:
			if !ok {
				s.log.Info("Push event stream closed")

				return nil
			}
			s.handleEvent(ctx, ev)
		case op := <-s.ops:
			op(ctx)
		}
	}
}

func (s *KDSService) handleEvent(ctx context.Context, ev push.Event) {
	switch ev.Kind {
	case push.KindConnected:
		s.setConnected(true)
		if !s.session.Empty() {
			s.joinAndSync(ctx)
		}
	case push.KindDisconnected:
		s.setConnected(false)
		s.log.Warn("Push channel offline, keeping working set", "orders", s.engine.Len())
	case push.KindJoined:
		s.log.Info("Joined room", "room", ev.Room)
	case push.KindOrderNew:
		if s.session.Empty() {
			s.log.Debug("Order ignored without session", "order_id", ev.Order.ID)
			return
		}
		if s.engine.IngestNew(ev.Order) {
			s.log.Info("Order received", "order_id", ev.Order.ID, "source", ev.Order.Source.String())
		}
	case push.KindOrderUpdated:
		s.ingestUpdate(ctx, ev.Patch)
	case push.KindOrderCancelled:
		if s.engine.IngestCancel(ev.OrderID) {
			s.log.Info("Order cancelled", "order_id", ev.OrderID)
		} else {
			s.log.Debug("Cancel for unknown order ignored", "order_id", ev.OrderID)
		}
	}
}

func (s *KDSService) ingestUpdate(ctx context.Context, p order.Patch) {
	var from order.Status
	if current, ok := s.engine.Get(p.ID); ok {
		from = current.Status
	}

	err := s.engine.IngestUpdate(p)
	switch {
	case err == nil:
		s.log.Debug("Order updated", "order_id", p.ID)
	case errors.Is(err, syncengine.ErrUnknownOrder):
		s.log.Debug("Update for unknown order dropped", "order_id", p.ID)
	case errors.Is(err, order.ErrBackwardTransition):
		s.log.Warn("Backward status transition ignored",
			"order_id", p.ID,
			"from", from.String(),
			"to", p.Status.String(),
		)
		entry := s.auditEntry(auditlog.KindAnomaly, p.ID, from, *p.Status, auditlog.OutcomeRejected, err)
		go s.writeAudit(context.WithoutCancel(ctx), entry)
	default:
		s.log.Error("Failed to apply order update", "order_id", p.ID, "error", err)
	}
}

func (s *KDSService) setConnected(connected bool) {
	if s.connected == connected {
		return
	}
	s.connected = connected
	s.connectedFlag.Store(connected)
	if connected {
		s.log.Info("Push channel connected")
	}
	if s.observer != nil {
		s.observer(connected)
	}
}

// joinAndSync (re)joins the room of the active session and fetches a snapshot.
func (s *KDSService) joinAndSync(ctx context.Context) {
	joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()
	if err := s.channel.Join(joinCtx, s.session.RoomKey()); err != nil {
		s.log.Warn("Failed to join room", "room", s.session.RoomKey(), "error", err)
	}
	s.startSnapshot(ctx)
}

// startSnapshot fetches the active orders off the loop. Only the latest request
// is applied; anything requested before it or before a tenant switch is dropped.
func (s *KDSService) startSnapshot(ctx context.Context) {
	s.snapshotSeq++
	seq := s.snapshotSeq
	code := s.session.Code
	s.syncing = true

	go func() {
		orders, err := s.backend.FetchActive(ctx, code)
		s.enqueue(func(context.Context) {
			if seq != s.snapshotSeq {
				s.log.Debug("Stale snapshot discarded", "restaurant_code", code)
				return
			}
			s.syncing = false
			if err != nil {
				s.log.Warn("Snapshot fetch failed, keeping working set", "restaurant_code", code, "error", err)
				return
			}
			s.engine.ReplaceAll(orders)
			s.urgentSeen = make(map[string]struct{})
			s.log.Info("Snapshot applied", "restaurant_code", code, "orders", s.engine.Len())
		})
	}()
}

// switchTenant tears the engine down and starts over for next.
func (s *KDSService) switchTenant(ctx context.Context, next session.Session) {
	if next.Code == s.session.Code {
		s.session = next
		return
	}

	prev := s.session
	s.engine.Close()
	s.session = next
	s.engine = s.newEngine(next)
	s.snapshotSeq++
	s.syncing = false
	s.urgentSeen = make(map[string]struct{})
	s.fanout(syncengine.Change{Kind: syncengine.ChangeReplaced})
	s.log.Info("Restaurant switched", "from", prev.Code, "to", next.Code)

	if !s.connected {
		return
	}
	if next.Empty() {
		joinCtx, cancel := context.WithTimeout(ctx, joinTimeout)
		defer cancel()
		if err := s.channel.Join(joinCtx, ""); err != nil {
			s.log.Warn("Failed to leave room", "room", prev.RoomKey(), "error", err)
		}

		return
	}
	s.joinAndSync(ctx)
}
