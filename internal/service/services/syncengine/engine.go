// Package syncengine owns the in-memory working set of orders for one restaurant.
//
// The engine is a plain state machine: every method is synchronous, deterministic
// and free of I/O. It is not safe for concurrent use; callers deliver events and
// commands one at a time (see kdssvc, which runs it on a single goroutine).
package syncengine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/google/uuid"
)

var (
	// ErrUnknownOrder is returned for updates and commands that reference an id
	// outside the working set. It is an expected race during reconnects.
	ErrUnknownOrder = errors.New("unknown order")
	// ErrUnknownToken is returned when a rollback token was already consumed or
	// invalidated by a snapshot replace.
	ErrUnknownToken = errors.New("unknown rollback token")
	// ErrNoChange is returned by ApplyOptimistic when the order already has the status.
	ErrNoChange = errors.New("order already has this status")
	// ErrClosed is returned by commands issued against a destroyed engine.
	ErrClosed = errors.New("sync engine closed")
)

// Counts aggregates the working set by status, independent of the current filter.
type Counts struct {
	Open       int `json:"open"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}

// Total is the number of counted orders.
func (c Counts) Total() int {
	return c.Open + c.InProgress + c.Completed
}

// Engine is the working set of a single restaurant.
type Engine struct {
	tenant string
	orders []order.Order // newest first
	filter order.Filter

	pending map[uuid.UUID]pendingChange

	listeners    []listenerEntry
	nextListener uint64

	now    func() time.Time
	log    *slog.Logger
	closed bool
}

// Option configures the Engine.
type Option func(*Engine)

// WithClock overrides the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLogger sets the logger used for low-severity diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an empty engine for the given restaurant room.
func New(tenant string, opts ...Option) *Engine {
	e := &Engine{
		tenant:    tenant,
		filter:    order.FilterAll,
		pending:   make(map[uuid.UUID]pendingChange),
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("tenant", tenant)

	return e
}

// Tenant returns the room key the engine was created for.
func (e *Engine) Tenant() string {
	return e.tenant
}

// Close destroys the engine. The working set, listeners and outstanding
// rollback tokens are dropped; later calls are no-ops.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.orders = nil
	e.pending = make(map[uuid.UUID]pendingChange)
	e.listeners = nil
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	return e.closed
}

// ReplaceAll resets the working set to an authoritative snapshot.
// Snapshot order is kept, duplicate ids keep their first occurrence and canceled
// orders are dropped. Outstanding rollback tokens no longer apply.
func (e *Engine) ReplaceAll(orders []order.Order) {
	if e.closed {
		return
	}

	next := make([]order.Order, 0, len(orders))
	seen := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if o.Status == order.StatusCanceled {
			continue
		}
		if _, dup := seen[o.ID]; dup {
			e.log.Debug("Duplicate order in snapshot skipped", "order_id", o.ID)
			continue
		}
		seen[o.ID] = struct{}{}
		next = append(next, o.Clone())
	}

	e.orders = next
	e.pending = make(map[uuid.UUID]pendingChange)
	e.notify(Change{Kind: ChangeReplaced})
}

// IngestNew inserts an order at the front of the working set.
// It reports false when the id is already present; the set and its order stay untouched.
func (e *Engine) IngestNew(o order.Order) bool {
	if e.closed {
		return false
	}
	if o.Status == order.StatusCanceled {
		e.log.Debug("Canceled order not inserted", "order_id", o.ID)
		return false
	}
	if e.indexOf(o.ID) >= 0 {
		e.log.Debug("Duplicate new order ignored", "order_id", o.ID)
		return false
	}

	e.orders = append(e.orders, order.Order{})
	copy(e.orders[1:], e.orders)
	e.orders[0] = o.Clone()
	e.notify(Change{Kind: ChangeAdded, OrderID: o.ID})

	return true
}

// IngestUpdate merges a partial update into the order with the same id.
//
// An update for an unknown id is dropped with ErrUnknownOrder. A CANCELED status
// removes the order. A backward status is not applied, the rest of the patch is,
// and order.ErrBackwardTransition is returned so the caller can record the anomaly.
func (e *Engine) IngestUpdate(p order.Patch) error {
	if e.closed {
		return ErrClosed
	}
	i := e.indexOf(p.ID)
	if i < 0 {
		return ErrUnknownOrder
	}

	current := e.orders[i]
	if p.Status != nil && *p.Status == order.StatusCanceled && order.CanTransition(current.Status, order.StatusCanceled) {
		e.removeAt(i)
		return nil
	}

	backward := p.IsBackward(current.Status)
	e.orders[i] = order.MergePartial(current, p, e.now())
	e.notify(Change{Kind: ChangeUpdated, OrderID: p.ID})

	if backward {
		return order.ErrBackwardTransition
	}

	return nil
}

// IngestCancel removes the order with the given id. It reports whether anything was removed.
func (e *Engine) IngestCancel(id string) bool {
	if e.closed {
		return false
	}
	i := e.indexOf(id)
	if i < 0 {
		return false
	}
	e.removeAt(i)

	return true
}

// SetFilter changes the derived view. The working set is not touched.
func (e *Engine) SetFilter(f order.Filter) {
	if e.filter == f {
		return
	}
	e.filter = f
	e.notify(Change{Kind: ChangeFilter})
}

// CurrentFilter returns the active filter.
func (e *Engine) CurrentFilter() order.Filter {
	return e.filter
}

// FilteredView returns copies of the orders passing the current filter, newest first.
func (e *Engine) FilteredView() []order.Order {
	return e.View(e.filter)
}

// View returns copies of the orders passing f, newest first.
func (e *Engine) View(f order.Filter) []order.Order {
	out := make([]order.Order, 0, len(e.orders))
	for _, o := range e.orders {
		if f.Match(o.Status) {
			out = append(out, o.Clone())
		}
	}

	return out
}

// Counts aggregates the full working set.
func (e *Engine) Counts() Counts {
	var c Counts
	for _, o := range e.orders {
		switch o.Status {
		case order.StatusOpen:
			c.Open++
		case order.StatusInProgress:
			c.InProgress++
		case order.StatusCompleted:
			c.Completed++
		}
	}

	return c
}

// Len returns the size of the working set.
func (e *Engine) Len() int {
	return len(e.orders)
}

// Get returns a copy of the order with the given id.
func (e *Engine) Get(id string) (order.Order, bool) {
	i := e.indexOf(id)
	if i < 0 {
		return order.Order{}, false
	}

	return e.orders[i].Clone(), true
}

// Urgent returns the orders that have waited too long to be started, newest first.
func (e *Engine) Urgent(now time.Time) []order.Order {
	var out []order.Order
	for _, o := range e.orders {
		if order.IsUrgent(o, now) {
			out = append(out, o.Clone())
		}
	}

	return out
}

func (e *Engine) indexOf(id string) int {
	for i := range e.orders {
		if e.orders[i].ID == id {
			return i
		}
	}

	return -1
}

func (e *Engine) removeAt(i int) {
	id := e.orders[i].ID
	e.orders = append(e.orders[:i], e.orders[i+1:]...)
	e.notify(Change{Kind: ChangeRemoved, OrderID: id})
}

func (e *Engine) insertAt(i int, o order.Order) {
	if i > len(e.orders) {
		i = len(e.orders)
	}
	e.orders = append(e.orders, order.Order{})
	copy(e.orders[i+1:], e.orders[i:])
	e.orders[i] = o
}
