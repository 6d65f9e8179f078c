package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"portrait-ai/internal/domain"
	"portrait-ai/internal/domain/model"
	"portrait-ai/internal/domain/ports/repository"
)

var _ repository.TrainingJobRepository = (*trainingJobRepo)(nil)

type trainingJobRepo struct {
	pool *pgxpool.Pool
}

func NewTrainingJobRepo(pool *pgxpool.Pool) *trainingJobRepo {
	return &trainingJobRepo{pool: pool}
}

const trainingJobColumns = `id, account_id, remote_model_id, remote_training_id, model_name, trigger_word, requested_steps, status, duration_seconds, trained_version, created_at, updated_at`

func (r *trainingJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.TrainingJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO training_jobs (id, account_id, remote_model_id, remote_training_id, model_name, trigger_word, requested_steps, status, duration_seconds, trained_version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  duration_seconds = EXCLUDED.duration_seconds,
  trained_version = EXCLUDED.trained_version,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.AccountID, job.RemoteModelID, job.RemoteTrainingID, job.ModelName,
		job.TriggerWord, job.RequestedSteps, job.Status, job.DurationSeconds, job.TrainedVersion,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *trainingJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.TrainingJob, error) {
	q := `SELECT ` + trainingJobColumns + ` FROM training_jobs WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanTrainingJob(row)
}

func (r *trainingJobRepo) FindByAccountAndName(ctx context.Context, tx repository.Tx, accountID, modelName string) (*model.TrainingJob, error) {
	q := `SELECT ` + trainingJobColumns + ` FROM training_jobs WHERE account_id=$1 AND model_name=$2 ORDER BY created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", accountID, modelName)
	if err != nil {
		return nil, err
	}
	return scanTrainingJob(row)
}

func (r *trainingJobRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.TrainingJob, error) {
	const q = `SELECT ` + trainingJobColumns + ` FROM training_jobs WHERE account_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TrainingJob
	for rows.Next() {
		j, err := scanTrainingJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *trainingJobRepo) FindPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]*model.TrainingJob, error) {
	const q = `SELECT ` + trainingJobColumns + ` FROM training_jobs WHERE status='pending' AND created_at < $1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TrainingJob
	for rows.Next() {
		j, err := scanTrainingJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanTrainingJob(row pgx.Row) (*model.TrainingJob, error) {
	j := &model.TrainingJob{}
	var status string
	err := row.Scan(&j.ID, &j.AccountID, &j.RemoteModelID, &j.RemoteTrainingID, &j.ModelName,
		&j.TriggerWord, &j.RequestedSteps, &status, &j.DurationSeconds, &j.TrainedVersion,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.TrainingJobStatus(status)
	return j, nil
}
