// Package dal selects the SQL backend the repositories run on.
package dal

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/kds/internal/dal/postgres"
	"github.com/corray333/backend-labs/kds/internal/dal/sqlite"
	"github.com/spf13/viper"
)

// Client is a migrated SQL database the repositories can query.
type Client interface {
	DB() *sql.DB
	Placeholder() sq.PlaceholderFormat
	Close() error
}

// MustNewClient opens the backend named by storage.driver.
func MustNewClient() Client {
	switch driver := viper.GetString("storage.driver"); driver {
	case "", "sqlite":
		return sqlite.MustNewClient()
	case "postgres":
		return postgres.MustNewClient()
	default:
		panic(fmt.Sprintf("unknown storage driver %q", driver))
	}
}
