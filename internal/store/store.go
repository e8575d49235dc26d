// Package store is the PostgreSQL persistence layer. It owns the parts
// table and implements the import engine's KeyedLookup collaborator:
// entities are keyed by the normalized (manufacturer, part number) pair,
// and each create or update is a single atomic statement.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store provides access to the parts inventory.
type Store struct {
	db DBTX
}

// New creates a Store on a pool or transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}
