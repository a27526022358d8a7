package sessionsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/corray333/backend-labs/kds/internal/dal/interfaces/isessionrepo"
	"github.com/corray333/backend-labs/kds/internal/service/models/session"
)

// ErrNoLookup is returned by Login when no restaurant lookup is configured.
var ErrNoLookup = errors.New("restaurant lookup not configured")

// restaurantLookup resolves a restaurant code to its display name.
type restaurantLookup interface {
	LookupRestaurant(ctx context.Context, code string) (string, error)
}

// Listener is called after the active session changed. It runs on the goroutine
// that changed the session and must not call back into the service.
type Listener func(prev, next session.Session)

// Unsubscribe removes a listener. Calling it more than once is safe.
type Unsubscribe func()

// SessionService owns the active restaurant session.
type SessionService struct {
	repo   isessionrepo.ISessionRepository
	lookup restaurantLookup

	mu        sync.Mutex
	current   session.Session
	listeners map[uint64]Listener
	nextID    uint64
}

// option is a function that configures the SessionService.
type option func(*SessionService)

// MustNewSessionService creates a new SessionService.
func MustNewSessionService(opts ...option) *SessionService {
	s := &SessionService{
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.repo == nil {
		panic("sessionsvc: session repository is required")
	}

	return s
}

// WithSessionRepository sets where the session survives restarts.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSessionRepository(repo isessionrepo.ISessionRepository) option {
	return func(s *SessionService) {
		s.repo = repo
	}
}

// WithRestaurantLookup sets the backend used to validate codes at login.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithRestaurantLookup(lookup restaurantLookup) option {
	return func(s *SessionService) {
		s.lookup = lookup
	}
}

// Restore loads the persisted session and announces it to listeners.
func (s *SessionService) Restore(ctx context.Context) (session.Session, error) {
	stored, err := s.repo.LoadSession(ctx)
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to restore session: %w", err)
	}
	if !stored.Empty() {
		code, err := session.NormalizeCode(stored.Code)
		if err != nil {
			slog.Warn("Stored session discarded", "restaurant_code", stored.Code, "error", err)
			return session.Session{}, s.repo.ClearSession(ctx)
		}
		stored.Code = code
		slog.Info("Session restored", "restaurant_code", stored.Code)
	}
	s.set(stored)

	return stored, nil
}

// Login validates rawCode against the backend, persists the session and switches to it.
func (s *SessionService) Login(ctx context.Context, rawCode string) (session.Session, error) {
	code, err := session.NormalizeCode(rawCode)
	if err != nil {
		return session.Session{}, err
	}
	if s.lookup == nil {
		return session.Session{}, ErrNoLookup
	}

	name, err := s.lookup.LookupRestaurant(ctx, code)
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to look up restaurant: %w", err)
	}

	next := session.Session{Code: code, Name: name}
	if err := s.repo.SaveSession(ctx, next); err != nil {
		return session.Session{}, fmt.Errorf("failed to persist session: %w", err)
	}
	slog.Info("Logged in", "restaurant_code", code, "restaurant_name", name)
	s.set(next)

	return next, nil
}

// Logout clears the persisted session.
func (s *SessionService) Logout(ctx context.Context) error {
	if err := s.repo.ClearSession(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	slog.Info("Logged out")
	s.set(session.Session{})

	return nil
}

// Current returns the active session.
func (s *SessionService) Current() session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Subscribe registers l for session changes.
func (s *SessionService) Subscribe(l Listener) Unsubscribe {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *SessionService) set(next session.Session) {
	s.mu.Lock()
	prev := s.current
	s.current = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	if prev == next {
		return
	}
	for _, l := range listeners {
		l(prev, next)
	}
}
