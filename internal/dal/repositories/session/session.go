package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/kds/internal/dal"
	"github.com/corray333/backend-labs/kds/internal/service/models/session"
)

// sessionRowID is the key of the only row in kds_session.
const sessionRowID = 1

// SessionRepository stores the active restaurant session in SQL.
type SessionRepository struct {
	client dal.Client
	now    func() time.Time
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(client dal.Client) *SessionRepository {
	return &SessionRepository{
		client: client,
		now:    time.Now,
	}
}

// LoadSession returns the stored session or an empty one.
func (r *SessionRepository) LoadSession(ctx context.Context) (session.Session, error) {
	query, args, err := sq.Select("restaurant_code", "restaurant_name").
		From("kds_session").
		Where(sq.Eq{"id": sessionRowID}).
		PlaceholderFormat(r.client.Placeholder()).
		ToSql()
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to build select session query: %w", err)
	}

	var s session.Session
	err = r.client.DB().QueryRowContext(ctx, query, args...).Scan(&s.Code, &s.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, nil
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	return s, nil
}

// SaveSession replaces the stored session.
func (r *SessionRepository) SaveSession(ctx context.Context, s session.Session) error {
	query, args, err := sq.Insert("kds_session").
		Columns("id", "restaurant_code", "restaurant_name", "updated_at").
		Values(sessionRowID, s.Code, s.Name, r.now().UTC()).
		Suffix("ON CONFLICT (id) DO UPDATE SET " +
			"restaurant_code = excluded.restaurant_code, " +
			"restaurant_name = excluded.restaurant_name, " +
			"updated_at = excluded.updated_at").
		PlaceholderFormat(r.client.Placeholder()).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert session query: %w", err)
	}

	if _, err := r.client.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// ClearSession removes the stored session.
func (r *SessionRepository) ClearSession(ctx context.Context) error {
	query, args, err := sq.Delete("kds_session").
		Where(sq.Eq{"id": sessionRowID}).
		PlaceholderFormat(r.client.Placeholder()).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete session query: %w", err)
	}

	if _, err := r.client.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	return nil
}
