package sqlite

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/kds/internal/dal/migrations"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/viper"
)

// Client represents a SQLite client.
type Client struct {
	db *sql.DB
}

// DB returns the underlying database connection.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Placeholder returns the bind variable format of the driver.
func (c *Client) Placeholder() sq.PlaceholderFormat {
	return sq.Question
}

// Close closes the database connection for graceful shutdown.
func (c *Client) Close() error {
	return c.db.Close()
}

// MustNewClient opens the database at storage.sqlite.path and applies migrations.
func MustNewClient() *Client {
	client, err := NewClient(viper.GetString("storage.sqlite.path"))
	if err != nil {
		panic(err)
	}

	return client
}

// NewClient opens or creates the database file at path and applies migrations.
func NewClient(path string) (*Client, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrations.Up(db, "sqlite3"); err != nil {
		db.Close()
		return nil, err
	}

	return &Client{db: db}, nil
}
