package repository

import (
	"context"

	"portrait-ai/internal/domain/model"
)

type CreditRepository interface {
	FindByAccount(ctx context.Context, tx Tx, accountID string) (*model.CreditBalance, error)
	// DecrementIfPositive atomically decrements the counter for kind by 1,
	// guarded by `counter > 0` at the storage layer. Zero affected rows is
	// reported as domain.ErrInsufficientCredits; this is the only safe way
	// to spend a credit under concurrent requests.
	DecrementIfPositive(ctx context.Context, tx Tx, accountID string, kind model.UsageKind) (remaining int, err error)
}
