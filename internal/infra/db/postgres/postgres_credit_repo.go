package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"portrait-ai/internal/domain"
	"portrait-ai/internal/domain/model"
	"portrait-ai/internal/domain/ports/repository"
)

var _ repository.CreditRepository = (*creditRepo)(nil)

type creditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *creditRepo {
	return &creditRepo{pool: pool}
}

func (r *creditRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.CreditBalance, error) {
	const q = `SELECT account_id, image_generation_count, model_training_count, updated_at FROM credits WHERE account_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return nil, err
	}
	c := &model.CreditBalance{}
	if err := row.Scan(&c.AccountID, &c.ImageGenerationCount, &c.ModelTrainingCount, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

// DecrementIfPositive spends one credit with a conditional update; the
// `> 0` guard in the WHERE clause is what makes concurrent spends safe.
// Zero affected rows means the account was already out of credit.
func (r *creditRepo) DecrementIfPositive(ctx context.Context, tx repository.Tx, accountID string, kind model.UsageKind) (int, error) {
	col := "model_training_count"
	if kind == model.UsageKindImageGeneration {
		col = "image_generation_count"
	}
	q := `UPDATE credits SET ` + col + ` = ` + col + ` - 1, updated_at = now() WHERE account_id=$1 AND ` + col + ` > 0 RETURNING ` + col + `;`

	row, err := pickRow(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return 0, err
	}
	var remaining int
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrInsufficientCredits
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return remaining, nil
}
