package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/kds/internal/dal/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Client represents a Postgres client.
type Client struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// Pool returns the underlying connection pool.
func (p *Client) Pool() *pgxpool.Pool {
	return p.pool
}

// DB returns a database/sql handle on top of the pool.
func (p *Client) DB() *sql.DB {
	return p.db
}

// Placeholder returns the bind variable format of the driver.
func (p *Client) Placeholder() sq.PlaceholderFormat {
	return sq.Dollar
}

// Close closes the database connection for graceful shutdown.
func (p *Client) Close() error {
	err := p.db.Close()
	p.pool.Close()

	return err
}

// MustNewClient creates a new Postgres client from KDS_PG_* environment variables.
func MustNewClient() *Client {
	connStr := fmt.Sprintf(
		"host=%s port=5432 user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("KDS_PG_HOST"),
		os.Getenv("KDS_PG_USER"),
		os.Getenv("KDS_PG_PASSWORD"),
		os.Getenv("KDS_PG_DB"),
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		panic(err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		panic(err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		panic(err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := migrations.Up(db, "postgres"); err != nil {
		panic(err)
	}

	return &Client{
		pool: pool,
		db:   db,
	}
}
