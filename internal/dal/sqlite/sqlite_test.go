package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_AppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kds.db")

	client, err := NewClient(path)
	require.NoError(t, err)

	var tables int
	err = client.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('kds_session', 'audit_log_order')`,
	).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 2, tables)
	require.NoError(t, client.Close())

	reopened, err := NewClient(path)
	require.NoError(t, err, "migrations are idempotent")
	require.NoError(t, reopened.Close())
}
