package syncengine

import (
	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/google/uuid"
)

// RollbackToken identifies an optimistic status change until it is committed or rolled back.
type RollbackToken struct {
	id      uuid.UUID
	OrderID string
	From    order.Status
	To      order.Status
}

// pendingChange is what Rollback needs to undo an optimistic change.
type pendingChange struct {
	prev order.Order
	// neighbours at apply time, used to put back an optimistic cancel
	before, after string
	index         int
}

// ApplyOptimistic changes an order's status locally before the backend confirms it.
// The returned token must be passed to Commit on success or Rollback on failure.
func (e *Engine) ApplyOptimistic(id string, status order.Status) (RollbackToken, error) {
	if e.closed {
		return RollbackToken{}, ErrClosed
	}
	i := e.indexOf(id)
	if i < 0 {
		return RollbackToken{}, ErrUnknownOrder
	}

	prev := e.orders[i]
	if prev.Status == status {
		return RollbackToken{}, ErrNoChange
	}
	if !order.CanTransition(prev.Status, status) {
		return RollbackToken{}, order.ErrBackwardTransition
	}

	token := RollbackToken{id: uuid.New(), OrderID: id, From: prev.Status, To: status}
	p := pendingChange{prev: prev.Clone(), index: i}
	if i > 0 {
		p.before = e.orders[i-1].ID
	}
	if i+1 < len(e.orders) {
		p.after = e.orders[i+1].ID
	}
	e.pending[token.id] = p

	if status == order.StatusCanceled {
		e.removeAt(i)
	} else {
		e.orders[i] = order.MergePartial(prev, order.StatusPatch(id, status), e.now())
		e.notify(Change{Kind: ChangeUpdated, OrderID: id})
	}

	return token, nil
}

// Commit forgets an optimistic change after the backend accepted it.
func (e *Engine) Commit(token RollbackToken) error {
	if _, ok := e.pending[token.id]; !ok {
		return ErrUnknownToken
	}
	delete(e.pending, token.id)

	return nil
}

// Rollback reverts an optimistic change after the backend rejected it.
//
// Only the status and UpdatedAt are restored, and only while the order still carries
// the optimistic status; if a newer update moved it on, that update wins and the
// rollback is a no-op. An optimistic cancel is undone by re-inserting the order at
// its former place between its neighbours.
func (e *Engine) Rollback(token RollbackToken) error {
	if e.closed {
		return ErrClosed
	}
	p, ok := e.pending[token.id]
	if !ok {
		return ErrUnknownToken
	}
	delete(e.pending, token.id)

	i := e.indexOf(token.OrderID)
	if token.To == order.StatusCanceled {
		if i >= 0 {
			return nil
		}
		e.insertAt(e.reinsertIndex(p), p.prev)
		e.notify(Change{Kind: ChangeRolledBack, OrderID: token.OrderID})

		return nil
	}

	if i < 0 || e.orders[i].Status != token.To {
		e.log.Debug("Rollback superseded by newer update", "order_id", token.OrderID)
		return nil
	}

	restored := e.orders[i].Clone()
	restored.Status = p.prev.Status
	restored.UpdatedAt = p.prev.UpdatedAt
	e.orders[i] = restored
	e.notify(Change{Kind: ChangeRolledBack, OrderID: token.OrderID})

	return nil
}

// Pending returns the number of optimistic changes awaiting Commit or Rollback.
func (e *Engine) Pending() int {
	return len(e.pending)
}

// reinsertIndex finds where a removed order goes back: ahead of the order that
// followed it, else behind the order that preceded it, else its old index.
func (e *Engine) reinsertIndex(p pendingChange) int {
	if p.after != "" {
		if i := e.indexOf(p.after); i >= 0 {
			return i
		}
	}
	if p.before != "" {
		if i := e.indexOf(p.before); i >= 0 {
			return i + 1
		}
	}

	return p.index
}
