package isessionrepo

import (
	"context"

	"github.com/corray333/backend-labs/kds/internal/service/models/session"
)

// ISessionRepository is interface for the persisted restaurant session.
type ISessionRepository interface {
	// LoadSession returns the stored session, or an empty one when nobody is logged in.
	LoadSession(ctx context.Context) (session.Session, error)
	SaveSession(ctx context.Context, s session.Session) error
	ClearSession(ctx context.Context) error
}
