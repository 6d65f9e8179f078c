package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"portrait-ai/internal/domain"
	"portrait-ai/internal/domain/model"
	"portrait-ai/internal/domain/ports/repository"
	"portrait-ai/internal/infra/metrics"
)

// Compile-time check
var _ CreditUseCase = (*creditUC)(nil)

// CreditUseCase is the admission gate shared by image generation and model
// training. The two-step shape exists because a remote call must succeed
// between check and commit; credits must never be spent for a job that was
// never started.
type CreditUseCase interface {
	// CheckAndReserve verifies the account can afford one operation of kind.
	// It performs no mutation; returns the remaining count before any spend.
	CheckAndReserve(ctx context.Context, accountID string, kind model.UsageKind) (int, error)
	// Commit spends exactly one credit. The decrement is an atomic
	// conditional update at the storage layer, so two racing commits for the
	// last credit cannot both succeed.
	Commit(ctx context.Context, tx repository.Tx, accountID string, kind model.UsageKind) (int, error)
}

type creditUC struct {
	credits repository.CreditRepository
	log     *zerolog.Logger
}

func NewCreditUseCase(credits repository.CreditRepository, logger *zerolog.Logger) *creditUC {
	l := logger.With().Str("component", "CreditUC").Logger()
	return &creditUC{credits: credits, log: &l}
}

func (u *creditUC) CheckAndReserve(ctx context.Context, accountID string, kind model.UsageKind) (int, error) {
	bal, err := u.credits.FindByAccount(ctx, nil, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// no ledger row means no allowance was ever provisioned
			metrics.IncCreditDenied(string(kind))
			return 0, domain.ErrInsufficientCredits
		}
		return 0, err
	}
	remaining := bal.Remaining(kind)
	if remaining <= 0 {
		metrics.IncCreditDenied(string(kind))
		return 0, domain.ErrInsufficientCredits
	}
	return remaining, nil
}

func (u *creditUC) Commit(ctx context.Context, tx repository.Tx, accountID string, kind model.UsageKind) (int, error) {
	remaining, err := u.credits.DecrementIfPositive(ctx, tx, accountID, kind)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			metrics.IncCreditDenied(string(kind))
		}
		return 0, err
	}
	metrics.IncCreditConsumed(string(kind))
	u.log.Debug().Str("account_id", accountID).Str("kind", string(kind)).Int("remaining", remaining).Msg("credit committed")
	return remaining, nil
}
