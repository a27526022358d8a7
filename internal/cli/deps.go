package cli

import (
	"github.com/corray333/backend-labs/kds/internal/config"
	"github.com/corray333/backend-labs/kds/internal/dal"
	"github.com/corray333/backend-labs/kds/internal/dal/interfaces/iauditrepo"
	auditrepo "github.com/corray333/backend-labs/kds/internal/dal/repositories/audit"
	sessionrepo "github.com/corray333/backend-labs/kds/internal/dal/repositories/session"
	"github.com/corray333/backend-labs/kds/internal/service/services/sessionsvc"
	"github.com/corray333/backend-labs/kds/internal/transport/api"
)

// Deps are the clients a one-shot command works with.
type Deps struct {
	Sessions *sessionsvc.SessionService
	Audit    iauditrepo.IAuditRepository
	API      *api.Client
	Close    func() error
}

// NewDeps wires the one-shot clients on top of an open storage client.
func NewDeps(client dal.Client, apiClient *api.Client) *Deps {
	return &Deps{
		Sessions: sessionsvc.MustNewSessionService(
			sessionsvc.WithSessionRepository(sessionrepo.NewSessionRepository(client)),
			sessionsvc.WithRestaurantLookup(apiClient),
		),
		Audit: auditrepo.NewAuditRepository(client),
		API:   apiClient,
		Close: client.Close,
	}
}

func newDeps(opts *RootOptions) (*Deps, error) {
	config.MustInitFile(opts.ConfigFile)

	return NewDeps(dal.MustNewClient(), api.NewClient()), nil
}
