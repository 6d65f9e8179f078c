// Package identity reads account contact data owned by the identity service.
package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"portrait-ai/internal/domain"
	"portrait-ai/internal/domain/ports/adapter"
)

var _ adapter.AccountDirectory = (*PgDirectory)(nil)

// PgDirectory resolves account emails from the shared accounts table. The
// table is written by the identity service; this deployment only reads it.
type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func (d *PgDirectory) EmailFor(ctx context.Context, accountID string) (string, error) {
	const q = `SELECT email FROM accounts WHERE id=$1;`
	var email string
	if err := d.pool.QueryRow(ctx, q, accountID).Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", domain.ErrReadDatabaseRow
	}
	return email, nil
}
