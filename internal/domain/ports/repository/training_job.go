package repository

import (
	"context"
	"time"

	"portrait-ai/internal/domain/model"
)

type TrainingJobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.TrainingJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.TrainingJob, error)
	// FindByAccountAndName matches the natural key carried in webhook
	// correlation parameters; there is no provider-side join key in the row
	// at webhook-registration time. Returns the most recent match.
	FindByAccountAndName(ctx context.Context, tx Tx, accountID, modelName string) (*model.TrainingJob, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string) ([]*model.TrainingJob, error)
	// FindPendingOlderThan returns jobs still pending whose submission predates
	// the cutoff; used by the timeout sweep.
	FindPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time) ([]*model.TrainingJob, error)
}
