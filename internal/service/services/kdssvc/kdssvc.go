// Package kdssvc runs the kitchen display: it serialises push events, kitchen
// commands and backend completions onto one goroutine that owns the sync engine
// of the active restaurant.
package kdssvc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corray333/backend-labs/kds/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/service/models/session"
	"github.com/corray333/backend-labs/kds/internal/service/services/syncengine"
)

var (
	// ErrNoSession is returned by commands issued while no restaurant is logged in.
	ErrNoSession = errors.New("no restaurant session")
	// ErrStopped is returned once Run has returned.
	ErrStopped = errors.New("kds service stopped")
)

// joinTimeout bounds a room join issued from the loop.
const joinTimeout = 5 * time.Second

// roomJoiner is the part of the push channel the service drives.
type roomJoiner interface {
	Join(ctx context.Context, room string) error
}

// backend is the REST side of the transport.
type backend interface {
	FetchActive(ctx context.Context, restaurantCode string) ([]order.Order, error)
	SetStatus(ctx context.Context, restaurantCode, orderID string, status order.Status) error
}

// State is the connection and session summary shown by the status bar.
type State struct {
	Connected      bool              `json:"connected"`
	Syncing        bool              `json:"syncing"`
	RestaurantCode string            `json:"restaurantCode"`
	RestaurantName string            `json:"restaurantName"`
	Filter         order.Filter      `json:"filter"`
	Counts         syncengine.Counts `json:"counts"`
	Pending        int               `json:"pending"`
}

// KDSService coordinates the sync engine with the transport.
type KDSService struct {
	channel  roomJoiner
	backend  backend
	audit    iauditrepo.IAuditRepository
	now      func() time.Time
	log      *slog.Logger
	observer func(connected bool)

	ops  chan func(ctx context.Context)
	done chan struct{}

	connectedFlag atomic.Bool

	lmu       sync.Mutex
	listeners []listener
	nextID    uint64

	// Owned by the loop goroutine.
	engine      *syncengine.Engine
	session     session.Session
	filter      order.Filter
	connected   bool
	snapshotSeq uint64
	syncing     bool
	urgentSeen  map[string]struct{}
}

type listener struct {
	id uint64
	fn syncengine.Listener
}

// option is a function that configures the KDSService.
type option func(*KDSService)

// MustNewKDSService creates a new KDSService.
func MustNewKDSService(opts ...option) *KDSService {
	s := &KDSService{
		now:        time.Now,
		log:        slog.Default(),
		ops:        make(chan func(ctx context.Context)),
		done:       make(chan struct{}),
		filter:     order.FilterAll,
		urgentSeen: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.channel == nil {
		panic("kdssvc: push channel is required")
	}
	if s.backend == nil {
		panic("kdssvc: backend client is required")
	}
	s.engine = s.newEngine(s.session)

	return s
}

// WithPushChannel sets the channel used to join restaurant rooms.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPushChannel(channel roomJoiner) option {
	return func(s *KDSService) {
		s.channel = channel
	}
}

// WithBackend sets the REST client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBackend(b backend) option {
	return func(s *KDSService) {
		s.backend = b
	}
}

// WithAuditRepository enables the audit log.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAuditRepository(audit iauditrepo.IAuditRepository) option {
	return func(s *KDSService) {
		s.audit = audit
	}
}

// WithSession sets the session active at start-up.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSession(sess session.Session) option {
	return func(s *KDSService) {
		s.session = sess
	}
}

// WithClock overrides the time source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *KDSService) {
		s.now = now
	}
}

// WithLogger sets the logger.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithLogger(log *slog.Logger) option {
	return func(s *KDSService) {
		s.log = log
	}
}

// WithConnectionObserver registers a callback for push connection changes.
// It runs on the loop goroutine and must not block.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithConnectionObserver(observer func(connected bool)) option {
	return func(s *KDSService) {
		s.observer = observer
	}
}

func (s *KDSService) newEngine(sess session.Session) *syncengine.Engine {
	e := syncengine.New(sess.RoomKey(), syncengine.WithClock(s.now), syncengine.WithLogger(s.log))
	e.SetFilter(s.filter)
	e.Subscribe(s.fanout)

	return e
}

// Connected reports whether the push channel is live. Safe for concurrent use.
func (s *KDSService) Connected() bool {
	return s.connectedFlag.Load()
}

// Subscribe registers a listener for working set changes. Listeners run on the
// loop goroutine and must not block or call back into the service.
func (s *KDSService) Subscribe(l syncengine.Listener) syncengine.Unsubscribe {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listener{id: id, fn: l})

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		for i, entry := range s.listeners {
			if entry.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *KDSService) fanout(c syncengine.Change) {
	s.lmu.Lock()
	listeners := s.listeners
	s.lmu.Unlock()

	for _, l := range listeners {
		l.fn(c)
	}
}

// do runs fn on the loop and waits for it.
func (s *KDSService) do(ctx context.Context, fn func(ctx context.Context)) error {
	finished := make(chan struct{})
	op := func(loopCtx context.Context) {
		defer close(finished)
		fn(loopCtx)
	}

	select {
	case s.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}
}

// enqueue hands fn to the loop without waiting. It is dropped once the loop stopped.
func (s *KDSService) enqueue(fn func(ctx context.Context)) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}
