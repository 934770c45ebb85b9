package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/genius-academy-api/pkg/database"
)

// Transactor runs callbacks inside one database transaction.
type Transactor struct {
	db *sqlx.DB
}

// NewTransactor constructs a Transactor.
func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

// WithTx commits when fn returns nil and rolls back otherwise.
func (t *Transactor) WithTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	return database.WithTx(ctx, t.db, func(tx *sqlx.Tx) error {
		return fn(tx)
	})
}
